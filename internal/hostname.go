package internal

import (
	"context"
	"net"
	"strings"
	"time"
)

// LookupHostname resolves ip to a hostname via reverse DNS, bounded by
// timeout. Every failure path returns the empty string: hostname capture
// is best-effort metadata and must never block or fail token issuance.
func LookupHostname(ctx context.Context, ip string, timeout time.Duration) string {
	if ip == "" {
		return ""
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names, err := net.DefaultResolver.LookupAddr(lookupCtx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}

	return strings.TrimSuffix(names[0], ".")
}
