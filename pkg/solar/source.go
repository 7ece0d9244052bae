// Package solar implements the dashboard data pipeline: fetching raw
// telemetry from the upstream monitoring API (or synthesizing it), unit and
// time normalization, and aggregation into the canonical dashboard model.
package solar

import (
	"context"

	"github.com/mikechalmers/bespokely-solar/pkg/types"
)

// Source produces a fresh canonical dashboard model. The live client and the
// mock generator both implement it, so consumers are agnostic to where the
// data came from.
type Source interface {
	// Dashboard runs one pipeline invocation. The context carries both the
	// caller's cancellation signal and, on the live path, feeds each
	// request's timeout.
	Dashboard(ctx context.Context) (types.DashboardModel, error)
}

// NewSource selects the source for the given resolved config: the mock
// generator when mock mode is on or no base URL is configured, otherwise the
// live client.
func NewSource(cfg Config) Source {
	if cfg.UseMockData || cfg.BaseURL == "" {
		return NewMock()
	}
	return NewClient(cfg)
}
