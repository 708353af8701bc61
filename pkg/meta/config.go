// pkg/meta/config.go

package meta

import "time"

// Config for registry clients.
type Config struct {
	Retries int
	Timeout time.Duration
}
