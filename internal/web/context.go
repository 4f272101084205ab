package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/annonces/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent to ctx so runs can
// record who submitted them.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r)) // already resolved by TrustedRealIP
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}
