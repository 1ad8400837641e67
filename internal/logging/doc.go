// Package logging assembles structured slog loggers used across smart-trapper.
//
// It owns the console and JSON handlers, level parsing, a fanout handler for
// duplicating records, and RunLog, an in-memory handler whose human-readable
// lines are flushed into the job folder at the end of every run so each run
// leaves a durable log regardless of outcome.
//
// Components never use the global slog logger. They receive a *slog.Logger
// tagged through NewComponentLogger.
package logging
