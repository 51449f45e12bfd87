package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mathshelp/mathshelp25/internal/platform/httpx"
)

type stubVerifier struct {
	claims *Claims
	err    error
}

func (v stubVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

type stubResolver struct {
	principal *Principal
	err       error
}

func (r stubResolver) ResolvePrincipal(ctx context.Context, claims *Claims) (*Principal, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.principal, nil
}

func okHandler(t *testing.T, sawPrincipal *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawPrincipal = PrincipalFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRequireAuthNoToken(t *testing.T) {
	mw := Middleware{Verifier: stubVerifier{err: ErrNoToken}, Resolver: stubResolver{}}
	rec := httptest.NewRecorder()
	var saw bool
	mw.RequireAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, CodeNoToken, env.Code)
	require.False(t, saw)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	mw := Middleware{Verifier: stubVerifier{err: ErrInvalidToken}, Resolver: stubResolver{}}
	rec := httptest.NewRecorder()
	var saw bool
	mw.RequireAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, CodeInvalidToken, decodeEnvelope(t, rec).Code)
}

func TestRequireAuthMissingEmail(t *testing.T) {
	mw := Middleware{
		Verifier: stubVerifier{claims: &Claims{}},
		Resolver: stubResolver{err: ErrMissingEmail},
	}
	rec := httptest.NewRecorder()
	var saw bool
	mw.RequireAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, CodeMissingEmail, decodeEnvelope(t, rec).Code)
}

func TestRequireAuthDeactivatedAccount(t *testing.T) {
	mw := Middleware{
		Verifier: stubVerifier{claims: &Claims{}},
		Resolver: stubResolver{err: ErrDeactivated},
	}
	rec := httptest.NewRecorder()
	var saw bool
	mw.RequireAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, CodeNoAuthUser, decodeEnvelope(t, rec).Code)
	require.False(t, saw)
}

func TestRequireAuthResolutionFailure(t *testing.T) {
	mw := Middleware{
		Verifier: stubVerifier{claims: &Claims{}},
		Resolver: stubResolver{err: errors.New("db down")},
	}
	rec := httptest.NewRecorder()
	var saw bool
	mw.RequireAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, CodeUserCreateError, decodeEnvelope(t, rec).Code)
}

func TestRequireAuthSuccessAttachesPrincipal(t *testing.T) {
	principal := &Principal{ID: 1, Role: RoleTeacher}
	mw := Middleware{
		Verifier: stubVerifier{claims: &Claims{}},
		Resolver: stubResolver{principal: principal},
	}
	rec := httptest.NewRecorder()
	var saw bool
	mw.RequireAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, saw)
}

func TestOptionalAuthAnonymousOnFailure(t *testing.T) {
	cases := []struct {
		name string
		mw   Middleware
	}{
		{"no token", Middleware{Verifier: stubVerifier{err: ErrNoToken}, Resolver: stubResolver{}}},
		{"bad token", Middleware{Verifier: stubVerifier{err: ErrInvalidToken}, Resolver: stubResolver{}}},
		{"resolution fails", Middleware{Verifier: stubVerifier{claims: &Claims{}}, Resolver: stubResolver{err: errors.New("db down")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			var saw bool
			tc.mw.OptionalAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			// The request always proceeds, just without a principal.
			require.Equal(t, http.StatusOK, rec.Code)
			require.False(t, saw)
		})
	}
}

func TestOptionalAuthAttachesPrincipalWhenValid(t *testing.T) {
	mw := Middleware{
		Verifier: stubVerifier{claims: &Claims{}},
		Resolver: stubResolver{principal: &Principal{ID: 2, Role: RoleStudent}},
	}
	rec := httptest.NewRecorder()
	var saw bool
	mw.OptionalAuth(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, saw)
}

func TestRequireRole(t *testing.T) {
	mw := Middleware{}
	gate := mw.RequireRole(RoleAdmin, RoleDepartmentHead)

	t.Run("no principal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		var saw bool
		gate(okHandler(t, &saw)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, CodeNoUser, decodeEnvelope(t, rec).Code)
	})

	t.Run("insufficient role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(), &Principal{ID: 3, Role: RoleTeacher}))
		rec := httptest.NewRecorder()
		var saw bool
		gate(okHandler(t, &saw)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeEnvelope(t, rec)
		require.Equal(t, CodeInsufficientRole, env.Code)
		require.Contains(t, env.Message, "admin or department_head")
		require.Contains(t, env.Message, "teacher")
	})

	t.Run("allowed role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(), &Principal{ID: 4, Role: RoleDepartmentHead}))
		rec := httptest.NewRecorder()
		var saw bool
		gate(okHandler(t, &saw)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, saw)
	})
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	require.Equal(t, "abc.def.ghi", BearerToken(req))

	req.Header.Set("Authorization", "bearer lower.case.ok")
	require.Equal(t, "lower.case.ok", BearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Empty(t, BearerToken(req))
}
