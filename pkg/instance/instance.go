package instance

import (
	"os"
	"strings"
)

// GetID returns the process instance identifier used to tag job lock
// ownership. Falls back to the hostname, then a fixed default.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("SLOTBOOK_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
