// Package api exposes the public operation surface over JSON HTTP: document
// transitions, notification creation and fan-out, per-user inbox and read
// state, and aggregate statistics. Transport is a thin layer; all rules live
// in the domain packages it delegates to.
package api
