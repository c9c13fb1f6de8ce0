package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJWT map[string]jwt.Claims

func (f fakeJWT) Generate(jwt.Subject) (jwt.Token, error) { return jwt.Token{}, nil }

func (f fakeJWT) Verify(tok string) (jwt.Claims, error) {
	c, ok := f[tok]
	if !ok {
		return jwt.Claims{}, jwt.ErrInvalidToken
	}
	return c, nil
}

type fakeRevocation struct {
	revoked map[string]bool
	err     error
}

func (f fakeRevocation) IsRevoked(_ context.Context, tok string) (bool, error) {
	return f.revoked[tok], f.err
}

type fixedID struct{}

func (fixedID) Generate() string { return "generated-cid" }

type loginBody struct {
	Phone string `json:"phone"`
}

func newTestRouter(t *testing.T, rev RevocationChecker) *Router {
	t.Helper()

	r, err := NewRouter(Config{
		UUID: fixedID{},
		JWT: fakeJWT{
			"candidate": {UserID: 1, Role: "candidate", IsActive: true},
			"admin":     {UserID: 2, Role: "admin", IsActive: true},
			"inactive":  {UserID: 3, Role: "candidate", IsActive: false},
			"revoked":   {UserID: 4, Role: "candidate", IsActive: true},
		},
		Revocation:  rev,
		ServiceName: "konkurs",
	})
	require.NoError(t, err)

	r.Register(
		Route{Method: http.MethodPost, Path: "/login", Handler: func(req *Request) (any, error) {
			var body loginBody
			if err := req.DecodeBody(&body); err != nil {
				return nil, err
			}
			if body.Phone == "" {
				return nil, goerror.NewInvalidInput(validator.V10ValidationError{"phone": "phone is a required field"})
			}
			if body.Phone == "boom" {
				return nil, errors.New("raw error")
			}
			return map[string]string{"phone": body.Phone}, nil
		}},
		Route{Method: http.MethodPost, Path: "/otp", Handler: func(*Request) (any, error) {
			return nil, goerror.NewBusinessKind("Wrong code", goerror.CodeBadRequest, "wrong_code")
		}},
		Route{Method: http.MethodPost, Path: "/logout", Status: http.StatusResetContent, Handler: func(*Request) (any, error) {
			return struct{}{}, nil
		}},
		Route{Method: http.MethodGet, Path: "/me", Access: AccessAuthenticated, Handler: func(req *Request) (any, error) {
			return map[string]int64{"id": jwt.GetAuth(req.Context()).UserID}, nil
		}},
		Route{Method: http.MethodPut, Path: "/admin/users/:id/role", Access: AccessRoles, Roles: []string{"admin"}, Handler: func(req *Request) (any, error) {
			id, err := req.GetParamInt64("id")
			if err != nil {
				return nil, err
			}
			return map[string]int64{"id": id}, nil
		}},
		Route{Method: http.MethodGet, Path: "/panic", Handler: func(*Request) (any, error) {
			panic("boom")
		}},
	)
	return r
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter(t, fakeRevocation{})

	rec := do(r, http.MethodPost, "/login", "", `{"phone":"+998901234567"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "generated-cid", rec.Header().Get(HeaderCorrelationID))
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"phone": "+998901234567"}, body["data"])

	rec = do(r, http.MethodPost, "/login", "", `{"phone":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/login", "", `{"phone":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "validation", body["kind"])
	assert.Equal(t, map[string]any{"phone": "phone is a required field"}, body["error"])

	rec = do(r, http.MethodPost, "/login", "", `{"phone":"boom"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["message"])

	rec = do(r, http.MethodPost, "/otp", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wrong_code", decode(t, rec)["kind"])

	rec = do(r, http.MethodPost, "/logout", "", "")
	assert.Equal(t, http.StatusResetContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Gate(t *testing.T) {
	r := newTestRouter(t, fakeRevocation{revoked: map[string]bool{"revoked": true}})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/me", want: http.StatusUnauthorized},
		{name: "malformed token", method: http.MethodGet, path: "/me", token: "garbage", want: http.StatusUnauthorized},
		{name: "revoked token", method: http.MethodGet, path: "/me", token: "revoked", want: http.StatusUnauthorized},
		{name: "inactive account", method: http.MethodGet, path: "/me", token: "inactive", want: http.StatusForbidden},
		{name: "authenticated", method: http.MethodGet, path: "/me", token: "candidate", want: http.StatusOK},
		{name: "admin on authenticated route", method: http.MethodGet, path: "/me", token: "admin", want: http.StatusOK},
		{name: "role mismatch", method: http.MethodPut, path: "/admin/users/9/role", token: "candidate", want: http.StatusForbidden},
		{name: "role match", method: http.MethodPut, path: "/admin/users/9/role", token: "admin", want: http.StatusOK},
		{name: "bad param", method: http.MethodPut, path: "/admin/users/x/role", token: "admin", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.path, tt.token, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_GateFailsClosed(t *testing.T) {
	r := newTestRouter(t, fakeRevocation{err: errors.New("redis down")})

	rec := do(r, http.MethodGet, "/me", "candidate", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", decode(t, rec)["kind"])
}

func TestRouter_Recover(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := do(r, http.MethodGet, "/panic", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(req)
	assert.False(t, ok)

	req.Header.Set("Authorization", "bearer   abc ")
	tok, ok := BearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Set("True-Client-IP", "not-an-ip")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}
