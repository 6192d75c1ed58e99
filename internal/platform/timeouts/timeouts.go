// Package timeouts defines shared timeout constants used across the console.
// Keeping the durations in one place makes them discoverable and stops the
// values from drifting between call sites.
package timeouts

import "time"

// DirectoryLookup caps the account directory read performed while refreshing
// a session's role/status snapshot. A lookup that misses this budget is
// treated as a failed refresh, never as trust in the cached token.
const DirectoryLookup = 2 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
