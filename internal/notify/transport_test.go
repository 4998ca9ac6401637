package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushoverTransport_SendsFormEncodedRequest(t *testing.T) {
	var gotBody string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := &PushoverTransport{Token: "tok", User: "usr", APIURL: server.URL}
	err := p.Send(context.Background(), "hello", "world")

	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Contains(t, gotBody, "token=tok")
	assert.Contains(t, gotBody, "message=world")
}

func TestPushoverTransport_ErrorStatusIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	p := &PushoverTransport{Token: "tok", User: "usr", APIURL: server.URL}
	err := p.Send(context.Background(), "hello", "world")

	assert.Error(t, err)
}

func TestWebhookTransport_SendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	wh := &WebhookTransport{URL: server.URL}
	err := wh.Send(context.Background(), "hello", "world")

	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"title":"hello","message":"world"}`, gotBody)
}

func TestWebhookTransport_ErrorStatusIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wh := &WebhookTransport{URL: server.URL}
	err := wh.Send(context.Background(), "hello", "world")

	assert.Error(t, err)
}
