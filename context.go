package authport

import "context"

type clientIPContextKey struct{}
type authResultContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine records
// it on issued token rows and in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// WithAuthResult attaches a verified [AuthResult] to ctx. The HTTP
// middleware uses it to hand the resolved user to downstream handlers;
// there is no process-wide current-user state anywhere in the package.
func WithAuthResult(ctx context.Context, res *AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// AuthResultFromContext returns the [AuthResult] attached by
// [WithAuthResult], or nil when the request was not authenticated.
func AuthResultFromContext(ctx context.Context) *AuthResult {
	if ctx == nil {
		return nil
	}

	res, _ := ctx.Value(authResultContextKey{}).(*AuthResult)
	return res
}
