// Package main hosts the Tramita CLI entrypoint and command graph.
//
// The Cobra-based command tree operates directly against the local SQLite
// database shared with the daemon: user directory maintenance, document
// workflow transitions, notification fan-out, inbox management, statistics,
// and configuration scaffolding. It centralizes configuration resolution and
// service stack wiring so subcommands can focus on user experience instead of
// plumbing.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
