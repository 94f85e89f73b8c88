package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func callWithKey(t *testing.T, mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sources/a/predictions", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	mw(passHandler).ServeHTTP(rec, req)
	return rec
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	rec := callWithKey(t, APIKey("none", "x-api-key", "secret"), "x-api-key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	// key="" means auth is not configured → allow all.
	rec := callWithKey(t, APIKey("apikey", "x-api-key", ""), "x-api-key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKey_CorrectKey_Passes(t *testing.T) {
	rec := callWithKey(t, APIKey("apikey", "x-api-key", "supersecret"), "x-api-key", "supersecret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKey_WrongKey_Unauthorized(t *testing.T) {
	rec := callWithKey(t, APIKey("apikey", "x-api-key", "supersecret"), "x-api-key", "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "invalid api key")
}

func TestAPIKey_MissingHeader_Unauthorized(t *testing.T) {
	rec := callWithKey(t, APIKey("apikey", "x-api-key", "supersecret"), "x-api-key", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKey_CustomHeader_CaseInsensitive(t *testing.T) {
	rec := callWithKey(t, APIKey("apikey", "X-Rul-Token", "mytoken"), "x-rul-token", "mytoken")
	assert.Equal(t, http.StatusOK, rec.Code)
}
