package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func serve(handler fasthttp.RequestHandler, token string, headers map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	handler(ctx)
	return ctx
}

func capture(user, role *string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		*user = string(ctx.Request.Header.Peek(HeaderUserID))
		*role = string(ctx.Request.Header.Peek(HeaderRole))
		ctx.SetStatusCode(http.StatusOK)
	}
}

func TestJWTAuthForwardsIdentity(t *testing.T) {
	var user, role string
	h := JWTAuth(secret, "planner", nil)(capture(&user, &role))

	token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
		"user_id": "user-1",
		"role":    "admin",
		"iss":     "planner",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	ctx := serve(h, token, map[string]string{HeaderUserID: "spoofed"})

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "user-1", user)
	assert.Equal(t, "admin", role)
}

func TestJWTAuthFallsBackToSubject(t *testing.T) {
	var user, role string
	h := JWTAuth(secret, "", nil)(capture(&user, &role))

	token := sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"sub": "user-9"})
	ctx := serve(h, token, nil)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "user-9", user)
	assert.Empty(t, role)
}

func TestJWTAuthRejects(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{name: "missing token", token: func(*testing.T) string { return "" }},
		{name: "garbage", token: func(*testing.T) string { return "not-a-jwt" }},
		{name: "wrong secret", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": "u", "iss": "planner"})
		}},
		{name: "expired", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{
				"user_id": "u", "iss": "planner", "exp": time.Now().Add(-time.Minute).Unix(),
			})
		}},
		{name: "wrong issuer", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"user_id": "u", "iss": "someone"})
		}},
		{name: "no subject", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.MapClaims{"iss": "planner"})
		}},
		{name: "unsigned", token: func(t *testing.T) string {
			return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"user_id": "u", "iss": "planner"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := JWTAuth(secret, "planner", nil)(func(*fasthttp.RequestCtx) { called = true })

			ctx := serve(h, tt.token(t), nil)
			assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
			assert.False(t, called)
		})
	}
}

func TestRequireRole(t *testing.T) {
	called := false
	h := RequireRole(RoleAdmin)(func(*fasthttp.RequestCtx) { called = true })

	ctx := &fasthttp.RequestCtx{}
	h(ctx)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())
	assert.False(t, called)

	ctx = &fasthttp.RequestCtx{}
	ctx.Request.Header.Set(HeaderRole, RoleAdmin)
	h(ctx)
	assert.True(t, called)
}
