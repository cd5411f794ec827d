package redis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const keyNamespace = "sb"

// IdempotencyKey hashes the scope because it embeds caller ids and paths.
func (c *Client) IdempotencyKey(scope, id string) string {
	sum := sha256.Sum256([]byte(scope))
	return buildKey("idempotency", hex.EncodeToString(sum[:8]), id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey("rate_limit", scope)
}

// LockKey names the single-runner lock for a job.
func (c *Client) LockKey(name string) string {
	return buildKey("lock", name)
}

func buildKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
