// Package tui renders upload pipeline progress.
//
// ProgramPresenter drives an interactive Bubble Tea view with one row per item
// and an overall progress bar. PlainPresenter writes one line per state change
// for pipes, CI logs and dumb terminals. DetectOutputMode picks between them.
package tui
