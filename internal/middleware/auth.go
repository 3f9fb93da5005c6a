package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/planner/api/transport"
)

// Headers carrying the authenticated identity to handlers.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

// RoleAdmin may trigger jobs for any user.
const RoleAdmin = "admin"

// JWTAuth validates an HMAC-signed bearer token and forwards its subject and
// role as headers. Identity headers sent by the client are always discarded.
func JWTAuth(secret, issuer string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(HeaderUserID)
			ctx.Request.Header.Del(HeaderRole)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				deny(ctx, fasthttp.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				deny(ctx, fasthttp.StatusUnauthorized)
				return
			}
			if issuer != "" && !claims.VerifyIssuer(issuer, true) {
				logger.Warn("jwt issuer mismatch", zap.Any("iss", claims["iss"]))
				deny(ctx, fasthttp.StatusUnauthorized)
				return
			}

			userID := subject(claims)
			if userID == "" {
				deny(ctx, fasthttp.StatusUnauthorized)
				return
			}
			ctx.Request.Header.Set(HeaderUserID, userID)
			if role, ok := claims["role"].(string); ok && role != "" {
				ctx.Request.Header.Set(HeaderRole, role)
			}

			next(ctx)
		}
	}
}

// RequireRole rejects requests whose token did not carry role.
func RequireRole(role string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Request.Header.Peek(HeaderRole)) != role {
				deny(ctx, fasthttp.StatusForbidden)
				return
			}
			next(ctx)
		}
	}
}

func subject(claims jwt.MapClaims) string {
	if userID, ok := claims["user_id"].(string); ok && userID != "" {
		return userID
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func deny(ctx *fasthttp.RequestCtx, status int) {
	code := "UNAUTHORIZED"
	if status == fasthttp.StatusForbidden {
		code = "FORBIDDEN"
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(transport.NewError(code, strings.ToLower(fasthttp.StatusMessage(status)), nil).String())
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
