package instance

import (
	"os"
	"strings"
)

// GetID identifies this worker process in logs. FOODRUN_WORKER_ID wins, then
// the platform dyno name, then the host name.
func GetID(service string) string {
	for _, key := range []string{"FOODRUN_WORKER_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	if service == "" {
		return host
	}
	return service + "@" + host
}
