package domain

import "errors"

var (
	// ErrMalformedInput is returned when model output cannot be decoded by any recovery stage
	ErrMalformedInput = errors.New("malformed model output")

	// ErrInvalidRecord is returned when a record has an empty or placeholder name
	ErrInvalidRecord = errors.New("invalid product record")

	// ErrCapabilityFailure is returned when the embedding or vector search backend fails
	ErrCapabilityFailure = errors.New("catalog capability failure")

	// ErrStoreIDRequired is returned when an operation needs a store number and none was given
	ErrStoreIDRequired = errors.New("store id required")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
