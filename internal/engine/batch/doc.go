// Package batch drives a collection of upload items through one pipeline
// transition with bounded concurrency.
//
// A Scheduler filters the caller's items through the transition's eligibility
// predicate and runs the eligible items' operations with at most K in flight.
// Key properties:
//   - Slots are refilled eagerly and in original order, one for one, as soon as
//     any running operation settles; there are no fixed-size rounds
//   - Nil entries in the input are skipped and consume no slot
//   - A failed item settles as error without affecting any sibling
//   - The Batch future closes exactly once, after every eligible item settled
//
// All slot bookkeeping happens on a single coordinator goroutine per batch;
// operations only report their outcome over a channel.
package batch
