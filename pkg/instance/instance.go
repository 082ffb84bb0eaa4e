// Package instance names the running process in logs and lock values.
package instance

import (
	"os"

	"github.com/harvestdesk/farmops-backend/pkg/env"
)

const EnvInstanceID = "FARMOPS_INSTANCE_ID"

const fallbackID = "farmops-0"

// GetID prefers FARMOPS_INSTANCE_ID, then the HOSTNAME variable set by most
// container runtimes, then the kernel hostname.
func GetID() string {
	if id := env.First(EnvInstanceID, "HOSTNAME"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
