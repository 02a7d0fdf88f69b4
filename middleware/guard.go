package middleware

import (
	"net"
	"net/http"
	"strings"

	authport "github.com/quvio/authport"
)

// Guard verifies the bearer token on every request and stores the
// result on the request context for handlers to read with
// [authport.AuthResultFromContext]. Requests without a valid token get
// a plain 401.
func Guard(engine *authport.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authport.WithClientIP(r.Context(), requestIP(r))
			res, err := engine.VerifyToken(ctx, token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(authport.WithAuthResult(ctx, res)))
		})
	}
}

// RequireRoles rejects verified requests whose user lacks any of the
// required roles. It must run inside [Guard].
func RequireRoles(engine *authport.Engine, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := authport.AuthResultFromContext(r.Context())
			if res == nil || !engine.VerifyRoles(res.User, roles...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP stamps the requester address onto the context for handlers
// that call the engine directly, outside of [Guard].
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(authport.WithClientIP(r.Context(), requestIP(r))))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func requestIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
