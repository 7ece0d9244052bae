package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikechalmers/bespokely-solar/pkg/solar"
	"github.com/mikechalmers/bespokely-solar/pkg/types"
)

// fakeSource returns a canned model, or if started is set, reports its
// invocation context and blocks until that context is canceled.
type fakeSource struct {
	model   types.DashboardModel
	err     error
	started chan context.Context
}

func (f *fakeSource) Dashboard(ctx context.Context) (types.DashboardModel, error) {
	if f.started != nil {
		f.started <- ctx
		<-ctx.Done()
		return types.DashboardModel{}, ctx.Err()
	}
	return f.model, f.err
}

func newTestServer(src solar.Source) *Server {
	return &Server{
		serverName: "bespokely-solar/test",
		newSource:  func(solar.Config) solar.Source { return src },
		refreshCh:  make(chan struct{}, 1),
	}
}

func testModel() types.DashboardModel {
	return types.DashboardModel{
		Overview: types.Overview{
			CurrentPowerKw: 1.2,
			TodayEnergyKwh: 15.0,
			PeakPowerKw:    4.0,
			CO2AvoidedKg:   5.4,
			LastUpdateTime: "2024-05-01 10:30:00",
		},
		Power: types.PowerSeries{Points: []types.PowerPoint{
			{Timestamp: "2024-05-01T10:00:00", PowerKw: 1.0},
		}},
		Energy: types.EnergySeries{Days: []types.EnergyDay{
			{Date: "2024-04-30", EnergyKwh: 210.5},
		}},
	}
}

func TestHandleDashboard(t *testing.T) {
	s := newTestServer(&fakeSource{model: testModel()})
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	t.Run("unavailable before first poll", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "data unavailable", body.Error)
	})

	t.Run("serves the latest model after a refresh", func(t *testing.T) {
		s.refresh(context.Background())

		resp, err := http.Get(ts.URL + "/api/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "bespokely-solar/test", resp.Header.Get("Server"))

		var model types.DashboardModel
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&model))
		assert.Equal(t, testModel(), model)
	})
}

func TestRefreshKeepsPreviousModelOnFailure(t *testing.T) {
	src := &fakeSource{model: testModel()}
	s := newTestServer(src)

	s.refresh(context.Background())
	require.NotNil(t, s.model)

	src.err = errors.New("upstream down")
	s.refresh(context.Background())

	require.NotNil(t, s.model, "a failed poll must not clear the published model")
	assert.Equal(t, testModel(), *s.model)
}

func TestRefreshSupersedesInFlight(t *testing.T) {
	src := &fakeSource{started: make(chan context.Context, 1)}
	s := newTestServer(src)

	go s.refresh(context.Background())
	var firstCtx context.Context
	select {
	case firstCtx = <-src.started:
	case <-time.After(time.Second):
		t.Fatal("first refresh never reached the source")
	}

	go s.refresh(context.Background())
	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("second refresh never reached the source")
	}

	select {
	case <-firstCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("starting a new refresh should cancel the in-flight one")
	}

	// unblock the second invocation
	s.mu.Lock()
	s.cancelPoll()
	s.mu.Unlock()
}

func TestHandleRefresh(t *testing.T) {
	s := newTestServer(&fakeSource{model: testModel()})
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-s.refreshCh:
	default:
		t.Fatal("refresh endpoint should signal the poll loop")
	}

	// a second request while one is pending coalesces instead of blocking
	s.refreshCh <- struct{}{}
	resp2, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp2.StatusCode)
}

func TestHandleHealthz(t *testing.T) {
	s := newTestServer(&fakeSource{})
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebHandler(t *testing.T) {
	s := newTestServer(&fakeSource{})
	s.webCacheDuration = time.Hour
	ts := httptest.NewServer(s.setupHandler())
	defer ts.Close()

	t.Run("serves the index", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	})

	t.Run("unknown paths fall back to the index", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/some/client/route")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	})

	t.Run("real assets are served directly", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/app.js")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	})
}
