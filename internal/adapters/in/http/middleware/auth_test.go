package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/zerowrap"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth_AllowsCorrectToken(t *testing.T) {
	wrapped := BearerAuth("s3cr3t", zerowrap.Default())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerAuth_RejectsMissingHeader(t *testing.T) {
	wrapped := BearerAuth("s3cr3t", zerowrap.Default())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="guerite"`, rec.Header().Get("WWW-Authenticate"))
}

func TestBearerAuth_RejectsWrongToken(t *testing.T) {
	wrapped := BearerAuth("s3cr3t", zerowrap.Default())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_RejectsNonBearerScheme(t *testing.T) {
	wrapped := BearerAuth("s3cr3t", zerowrap.Default())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	req.Header.Set("Authorization", "Basic s3cr3t")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerAuth_EmptyTokenDisablesCheck(t *testing.T) {
	wrapped := BearerAuth("", zerowrap.Default())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
