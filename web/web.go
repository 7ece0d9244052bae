// Package web embeds the static dashboard frontend. It is a pure consumer of
// the /api/dashboard model; all pipeline logic lives server-side.
package web

import "embed"

//go:embed static
var StaticFS embed.FS
