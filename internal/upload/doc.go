// Package upload defines the unit of batch work moved through the upload
// pipeline: the Item record, its lifecycle states, the eligibility predicates
// that gate a transition, and the error kinds a transition can settle with.
//
// An Item is safe for concurrent use. The scheduler and the single operation
// it runs for an item are the only writers of lifecycle state; any goroutine
// may call Abort to request cooperative cancellation.
package upload
