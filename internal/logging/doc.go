// Package logging centralizes slog construction and the structured field
// vocabulary used across the store, patch, and writeback components.
//
// Loggers are built from config (console or JSON format, optional file
// mirror under the log directory). Components attach themselves with
// logger.With(logging.String(logging.FieldComponent, "writeback")) so log
// lines stay greppable by subsystem and by run/patch identifiers.
package logging
