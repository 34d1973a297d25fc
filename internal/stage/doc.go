// Package stage composes batch transitions into the fixed upload pipeline:
// File, Deed, Details and Thanks.
//
// Each Stage is a tagged value holding the transition it runs on entry (if
// any). The Sequencer walks the pipeline, hands the item collection to the
// batch scheduler for the stage being entered, and reports what happened to a
// Presenter. It holds no concurrency logic of its own.
package stage
