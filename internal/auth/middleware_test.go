package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "bearer abc.def.ghi")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestParseUnverifiedClaimsMergesRoles(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"sub":          "user-1",
		"realm_access": map[string]any{"roles": []string{"admin"}},
		"roles":        []string{"organizer"},
	})

	claims, err := ParseUnverifiedClaims(token)
	require.NoError(t, err)

	actor := claims.Actor()
	assert.Equal(t, "user-1", actor.UserID)
	assert.ElementsMatch(t, []string{"admin", "organizer"}, actor.Roles)
	assert.True(t, actor.IsAdmin())
}

func TestParseUnverifiedClaimsRequiresSubject(t *testing.T) {
	_, err := ParseUnverifiedClaims(signedToken(t, jwt.MapClaims{"name": "nobody"}))
	assert.Error(t, err)

	_, err = ParseUnverifiedClaims("garbage")
	assert.Error(t, err)
}

func TestMiddlewareStoresActor(t *testing.T) {
	var seen models.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(InsecureVerifier{}, logger.NewConsoleLogger(io.Discard))(next)

	r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "alice"}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "alice", seen.UserID)
	assert.False(t, seen.IsAdmin())
}

func TestMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	handler := Middleware(InsecureVerifier{}, logger.NewConsoleLogger(io.Discard))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorFromEmptyContext(t *testing.T) {
	assert.Equal(t, models.Actor{}, ActorFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
