// Package daemon runs the long-lived service process: the HTTP API and the
// periodic maintenance sweep, locked to a single instance per data
// directory.
package daemon
