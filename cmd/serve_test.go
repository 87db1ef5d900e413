//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderdesk-cli/internal/model"
	"github.com/sells-group/orderdesk-cli/internal/store"
)

func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return &pipelineEnv{Store: st}
}

func TestServeMux_Health(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeMux_Process_InvalidBody(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeMux_Process_MissingFields(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	body, _ := json.Marshal(map[string]string{"subject": "no id or body"})
	req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "required")
}

func TestServeMux_Runs(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(context.Background(), env)

	run, err := env.Store.CreateRun(context.Background(), model.Email{
		RequestID: "E001",
		Body:      "I'd like to order a wallet.",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/runs/"+run.ID, nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "E001", got.Email.RequestID)
}

func TestServeMux_RunNotFound(t *testing.T) {
	mux := newServeMux(context.Background(), newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/runs/nope", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
