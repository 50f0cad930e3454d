package dao

import "context"

type refreshContextKey struct{}

// WithRefresh marks ctx so reads made with it bypass the cache and store
// the fresh result.
func WithRefresh(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, refreshContextKey{}, true)
}

// RefreshRequested reports whether ctx was marked by WithRefresh.
func RefreshRequested(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	refresh, _ := ctx.Value(refreshContextKey{}).(bool)
	return refresh
}
