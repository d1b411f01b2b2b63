package middleware

// Responses of read-only methods are cached in process. Entries are dropped
// when the served data changes, e.g. after a model reload.

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
)

// Cache is an LRU response cache for selected unary methods.
type Cache struct {
	lru     *lru.Cache
	methods map[string]bool
}

// NewCache creates a cache of the given size for the listed full method
// names. Other methods pass through untouched.
func NewCache(size int, methods ...string) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	m := make(map[string]bool, len(methods))
	for _, name := range methods {
		m[name] = true
	}
	return &Cache{lru: c, methods: m}, nil
}

// Interceptor serves cached responses and stores successful ones.
func (c *Cache) Interceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	if !c.methods[info.FullMethod] {
		return handler(ctx, req)
	}

	key := generateCacheKey(info.FullMethod, req)
	if cachedResp, ok := c.lru.Get(key); ok {
		return cachedResp, nil
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}

	c.lru.Add(key, resp)
	return resp, nil
}

// Purge drops every cached response.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// generateCacheKey generates a cache key based on the gRPC method and request.
func generateCacheKey(method string, req interface{}) string {
	reqBytes, _ := json.Marshal(req)
	return fmt.Sprintf("%s:%s", method, string(reqBytes))
}
