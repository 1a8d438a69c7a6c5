// Package permissions evaluates whether an actor may perform an action on a
// resource. Grants come from a static role table, scoped by workspace, with
// an ownership override for documents still in an editable status.
package permissions
