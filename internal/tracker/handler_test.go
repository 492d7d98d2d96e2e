package tracker_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inakat/lifecycle-service/internal/lifecycle"
	"inakat/lifecycle-service/internal/tracker"
)

func newServer(t *testing.T) (*harness, *httptest.Server) {
	t.Helper()
	h := newHarness(t)
	srv := httptest.NewServer(tracker.NewHandler(h.svc, "test").Routes())
	t.Cleanup(srv.Close)
	return h, srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, v lifecycle.Viewer, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if v.UserID != "" {
		req.Header.Set("x-user-id", v.UserID)
		req.Header.Set("x-user-role", string(v.Role))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHTTP_Health(t *testing.T) {
	_, srv := newServer(t)
	resp, body := do(t, srv, http.MethodGet, "/health", lifecycle.Viewer{}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestHTTP_RequiresViewer(t *testing.T) {
	_, srv := newServer(t)
	resp, _ := do(t, srv, http.MethodGet, "/applications/x", lifecycle.Viewer{}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/applications/x", lifecycle.Viewer{Role: "superuser", UserID: "u"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_SubmitViewAndTransition(t *testing.T) {
	_, srv := newServer(t)

	resp, body := do(t, srv, http.MethodPost, "/applications", candidate, submission("ana@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, _ = do(t, srv, http.MethodPost, "/applications", candidate, submission("ana@example.com"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/applications/"+id, candidate, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "En revisión", body["status"])
	assert.Nil(t, body["notes"])

	resp, body = do(t, srv, http.MethodPost, "/applications/"+id+"/transitions", recruiter, map[string]any{
		"status": "sent_to_company",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(lifecycle.NotAnAllowedEdge), body["reason"])

	resp, body = do(t, srv, http.MethodPost, "/applications/"+id+"/transitions", recruiter, map[string]any{
		"status": "reviewing",
		"notes":  "good fit",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	app := body["application"].(map[string]any)
	assert.Equal(t, "reviewing", app["status"])
	assert.Equal(t, "good fit", app["notes"])
	assert.Equal(t, false, body["needsAssignment"])
}

func TestHTTP_CompanyGetsNotFoundForEarlyStages(t *testing.T) {
	_, srv := newServer(t)
	_, body := do(t, srv, http.MethodPost, "/applications", candidate, submission("ana@example.com"))
	id := body["id"].(string)

	company := lifecycle.Viewer{Role: lifecycle.RoleCompany, UserID: "comp-1"}
	resp, _ := do(t, srv, http.MethodGet, "/applications/"+id, company, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/applications/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_BadRequests(t *testing.T) {
	_, srv := newServer(t)
	_, body := do(t, srv, http.MethodPost, "/applications", candidate, submission("ana@example.com"))
	id := body["id"].(string)

	resp, _ := do(t, srv, http.MethodPost, "/applications/"+id+"/transitions", recruiter, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/applications/"+id+"/transitions", recruiter, map[string]any{"status": "hired"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/applications", recruiter, submission("bob@example.com"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_AllowedTargets(t *testing.T) {
	_, srv := newServer(t)
	resp, body := do(t, srv, http.MethodGet, "/statuses/pending/transitions", recruiter, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"reviewing", "discarded"}, body["targets"])

	resp, _ = do(t, srv, http.MethodGet, "/statuses/hired/transitions", recruiter, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
