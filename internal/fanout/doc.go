// Package fanout creates notifications and materializes one delivery record
// per resolved recipient, written atomically with the parent row. Batches run
// sequentially in input order with a configurable delay and failure policy;
// channel dispatch is best-effort and reports per-recipient outcomes.
package fanout
