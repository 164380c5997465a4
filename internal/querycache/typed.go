package querycache

import (
	"context"
	"fmt"
)

// Query reads key through the cache with a typed fetcher. The error is the
// one stored for the key, so stale data may come back together with the
// error of the refresh that failed.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	res := c.Get(ctx, key, Wrap(fetch))
	return As[T](res)
}

// Wrap adapts a typed fetch function to a Fetcher.
func Wrap[T any](fetch func(context.Context) (T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// As extracts typed data from a result.
func As[T any](res Result) (T, error) {
	var zero T
	if res.Data == nil {
		if res.Err != nil {
			return zero, res.Err
		}
		return zero, nil
	}
	v, ok := res.Data.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: cached value is %T, not %T", res.Data, zero)
	}
	return v, res.Err
}
