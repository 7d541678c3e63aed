package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"labportal/internal/auth"
	"labportal/internal/models"
	"labportal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthSessionLifecycle(t *testing.T) {
	db := testutil.OpenDB(t)
	tokens := testutil.Tokens()
	u := testutil.SeedUser(t, db, "alice", auth.RoleLabAssistant)

	var seen auth.Claims
	h := auth.JWTAuth(db, tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, "garbage").Code)

	// Signed but never persisted as a session.
	orphan, err := tokens.Sign(u.ID, u.Username, u.RoleNames())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, orphan.Token).Code)

	tok := testutil.Token(t, db, tokens, u)
	w := testutil.DoRequest(h, http.MethodGet, "/", nil, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, u.ID, seen.Subject)
	assert.Equal(t, []string{auth.RoleLabAssistant}, seen.Roles)

	claims, err := tokens.Verify(tok)
	require.NoError(t, err)
	require.NoError(t, auth.RevokeSession(context.Background(), db, claims.JWTID))
	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, tok).Code)
}

func TestRevokeUserSessions(t *testing.T) {
	db := testutil.OpenDB(t)
	tokens := testutil.Tokens()
	u := testutil.SeedUser(t, db, "alice", auth.RoleLabAssistant)
	h := auth.JWTAuth(db, tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	t1 := testutil.Token(t, db, tokens, u)
	t2 := testutil.Token(t, db, tokens, u)
	require.NoError(t, auth.RevokeUserSessions(context.Background(), db, u.ID))
	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, t1).Code)
	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, t2).Code)
}

func TestRequireRole(t *testing.T) {
	h := auth.RequireRole(auth.RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := func(roles ...string) int {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(auth.WithClaims(r.Context(), auth.Claims{Subject: "x", Roles: roles}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}
	assert.Equal(t, http.StatusForbidden, req(auth.RoleSupervisor))
	assert.Equal(t, http.StatusOK, req(auth.RoleManager))
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	created, err := auth.EnsureUser(ctx, db, " Boss ", "long-enough", auth.RoleManager)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = auth.EnsureUser(ctx, db, "boss", "whatever-else", auth.RoleManager)
	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, auth.EnsureRoles(ctx, db))
}

func TestJWTAuthUsesCurrentAccountState(t *testing.T) {
	db := testutil.OpenDB(t)
	tokens := testutil.Tokens()
	u := testutil.SeedUser(t, db, "alice", auth.RoleLabAssistant)
	tok := testutil.Token(t, db, tokens, u)

	var seen auth.Claims
	h := auth.JWTAuth(db, tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.FromContext(r.Context())
	}))

	var supervisor models.Role
	require.NoError(t, db.First(&supervisor, "name = ?", auth.RoleSupervisor).Error)
	require.NoError(t, db.Model(&u).Association("Roles").Replace([]models.Role{supervisor}))
	require.Equal(t, http.StatusOK, testutil.DoRequest(h, http.MethodGet, "/", nil, tok).Code)
	assert.Equal(t, []string{auth.RoleSupervisor}, seen.Roles)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	assert.Equal(t, http.StatusUnauthorized, testutil.DoRequest(h, http.MethodGet, "/", nil, tok).Code)
}
