package bridge_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekarrin/fiberhost/internal/bridge"
	"github.com/dekarrin/fiberhost/internal/fiber"
	"github.com/dekarrin/fiberhost/internal/fiberexpr"
	"github.com/dekarrin/fiberhost/internal/hostlog"
	"github.com/dekarrin/fiberhost/internal/units/metadata"
	"github.com/dekarrin/fiberhost/internal/units/timer"
)

func newTestServer(t *testing.T) (*bridge.Server, *bridge.ClientStore) {
	t.Helper()
	clients := bridge.NewClientStore()
	_, err := clients.Register("tester", "horsebatterystaplecorrect")
	require.NoError(t, err)

	cfg := bridge.Config{TokenSecret: []byte("0123456789abcdef0123456789abcdef")}
	cfg = cfg.FillDefaults()
	require.NoError(t, cfg.Validate())

	parser, err := fiber.NewFiberParser([]fiber.Parser{metadata.NewParser(), timer.NewParser(), fiber.NewStateParser()})
	require.NoError(t, err)
	env := fiberexpr.NewEnv("global")
	logger := hostlog.New(hostlog.LevelError)

	srv := bridge.NewServer(cfg, parser, env, nil, clients, logger)
	return srv, clients
}

func postJSON(t *testing.T, srv *bridge.Server, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestEpCreateToken_ValidCredentialsIssuesBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv, "/api/v1/tokens", map[string]string{
		"name":   "tester",
		"secret": "horsebatterystaplecorrect",
	}, "")

	require.Equal(t, http.StatusCreated, rec.Code)

	var out struct {
		Token    string `json:"token"`
		ClientID string `json:"clientId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Token)
	assert.NotEmpty(t, out.ClientID)
}

func TestEpCreateToken_BadSecretIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv, "/api/v1/tokens", map[string]string{
		"name":   "tester",
		"secret": "wrong",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEpGetInfo_RequiresNoAuthButReflectsIt(t *testing.T) {
	srv, _ := newTestServer(t)

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/info", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, anon)
	require.Equal(t, http.StatusOK, rec.Code)

	var anonOut struct {
		LoggedIn bool `json:"loggedIn"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anonOut))
	assert.False(t, anonOut.LoggedIn)
}

func TestDraftLifecycle_CreateGetCompile(t *testing.T) {
	srv, _ := newTestServer(t)

	tokenRec := postJSON(t, srv, "/api/v1/tokens", map[string]string{
		"name":   "tester",
		"secret": "horsebatterystaplecorrect",
	}, "")
	require.Equal(t, http.StatusCreated, tokenRec.Code)
	var tokenOut struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(tokenRec.Body.Bytes(), &tokenOut))

	createRec := postJSON(t, srv, "/api/v1/drafts", map[string]interface{}{
		"documents": []map[string]string{
			{"id": "main", "path": "main.fiber", "source": "name: Demo\nsteps:\n  wait: 30 sec\n"},
		},
		"entryDocumentId": "main",
	}, tokenOut.Token)
	require.Equal(t, http.StatusCreated, createRec.Code)

	var draftOut struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &draftOut))
	require.NotEmpty(t, draftOut.ID)

	getRec := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/"+draftOut.ID, nil)
	getRec.Header.Set("Authorization", "Bearer "+tokenOut.Token)
	getRecRes := httptest.NewRecorder()
	srv.ServeHTTP(getRecRes, getRec)
	assert.Equal(t, http.StatusOK, getRecRes.Code)

	compileRec := postJSON(t, srv, "/api/v1/drafts/"+draftOut.ID+"/compile", nil, tokenOut.Token)
	assert.Equal(t, http.StatusOK, compileRec.Code)
}

func TestProtectedEndpoint_MissingTokenIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/00000000-0000-0000-0000-000000000000", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEpGetDraft_UnknownIDIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	tokenRec := postJSON(t, srv, "/api/v1/tokens", map[string]string{
		"name":   "tester",
		"secret": "horsebatterystaplecorrect",
	}, "")
	var tokenOut struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(tokenRec.Body.Bytes(), &tokenOut))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/00000000-0000-0000-0000-000000000000", nil)
	req.Header.Set("Authorization", "Bearer "+tokenOut.Token)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
