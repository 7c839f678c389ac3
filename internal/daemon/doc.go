// Package daemon runs the connector HTTP server and the background
// loops (session sweeping, PDF recognition) behind a single-instance
// lock.
package daemon
