// Package logging builds the zerolog loggers used across uploadwiz.
//
// A command gets one root logger from NewLoggerWithPath, which writes to a log
// file when configured and falls back to stderr when the file cannot be
// opened. Components derive their own loggers with ComponentLogger. Each
// command run carries a ULID trace ID in its context, and TraceHook stamps it
// onto every event logged with .Ctx(ctx).
package logging
