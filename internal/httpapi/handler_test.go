package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/zerowrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcarmo/guerite/internal/boundaries/in"
)

type fakeLoop struct {
	triggered int
	state     in.LoopState
}

func (f *fakeLoop) TriggerCycle() { f.triggered++ }
func (f *fakeLoop) State() in.LoopState {
	if f.state == "" {
		return in.LoopIdle
	}
	return f.state
}

func newTestMux(loop *fakeLoop, cfg Config) *http.ServeMux {
	h := NewHandler(loop, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), cfg, zerowrap.Default())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestHandleUpdate_TriggersCycleAndReturns204(t *testing.T) {
	loop := &fakeLoop{}
	mux := newTestMux(loop, Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/update", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, loop.triggered)
}

func TestHandleUpdate_RejectsGET(t *testing.T) {
	loop := &fakeLoop{}
	mux := newTestMux(loop, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/update", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleUpdate_RequiresBearerTokenWhenConfigured(t *testing.T) {
	loop := &fakeLoop{}
	mux := newTestMux(loop, Config{Token: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/v1/update", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/v1/update", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusNoContent, rec2.Code)
	assert.Equal(t, 1, loop.triggered)
}

func TestHandleHealthz_ReturnsServiceUnavailableBeforeReady(t *testing.T) {
	loop := &fakeLoop{state: in.LoopNotReady}
	mux := newTestMux(loop, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealthz_ReturnsOKOnceReady(t *testing.T) {
	loop := &fakeLoop{state: in.LoopIdle}
	mux := newTestMux(loop, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idle")
}

func TestHandleHealthz_DoesNotRequireBearerToken(t *testing.T) {
	loop := &fakeLoop{}
	mux := newTestMux(loop, Config{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterRoutes_MetricsDisabledIsNotRegistered(t *testing.T) {
	loop := &fakeLoop{}
	mux := newTestMux(loop, Config{MetricsEnabled: false})

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterRoutes_MetricsEnabledIsServed(t *testing.T) {
	loop := &fakeLoop{}
	mux := newTestMux(loop, Config{MetricsEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
