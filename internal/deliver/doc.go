// Package deliver pushes notifications to recipients over best-effort
// channels. Every channel failure is captured into a per-method status map;
// delivery problems never fail the operation that created the notification.
package deliver
