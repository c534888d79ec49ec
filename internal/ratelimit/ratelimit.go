// Package ratelimit implements a per-caller token bucket. Buckets live in
// Redis so every gateway instance shares them; an in-process variant exists
// for single-instance deployments and tests.
package ratelimit

import (
	"context"
	"net/http"
)

// AnonymousKey buckets callers that do not identify themselves
const AnonymousKey = "anonymous"

// Policy is a token bucket: Burst tokens at most, refilled at
// ReplenishRate tokens per second, Requested tokens per request.
type Policy struct {
	ReplenishRate float64
	BurstCapacity int
	Requested     int
}

func (p Policy) normalized() Policy {
	if p.ReplenishRate <= 0 {
		p.ReplenishRate = 1
	}
	if p.BurstCapacity <= 0 {
		p.BurstCapacity = 1
	}
	if p.Requested <= 0 {
		p.Requested = 1
	}
	return p
}

type Result struct {
	Allowed   bool
	Remaining int64
}

type Limiter interface {
	// Allow takes Requested tokens from the bucket of key
	Allow(ctx context.Context, key string) (Result, error)
	Policy() Policy
}

// KeyResolver names the bucket a request draws from
type KeyResolver func(r *http.Request) string

// HeaderKeyResolver keys buckets by the value of header, or AnonymousKey
// when the request does not carry it.
func HeaderKeyResolver(header string) KeyResolver {
	return func(r *http.Request) string {
		if v := r.Header.Get(header); v != "" {
			return v
		}
		return AnonymousKey
	}
}
