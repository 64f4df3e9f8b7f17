package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// JobStatusKey returns the cache key for a job's current status.
func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:status:%s", jobID)
}

// ResultKey returns the cache key for a normalized result, keyed by the
// input spec fingerprint so identical requests share the cached entry.
func ResultKey(fingerprint string) string {
	return fmt.Sprintf("result:%s", fingerprint)
}

// RateLimitKey returns the rate-limit counter key for an API key prefix.
func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
