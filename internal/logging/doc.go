// Package logging builds the process-wide slog logger and the attribute
// helpers the rest of the daemon uses. Two output formats are supported:
// a human-oriented console format and line-delimited JSON.
package logging
