// Package logx configures cinebot's structured logging.
//
// It wraps zerolog behind a small Logger value so that:
//   - console output stays readable (short timestamp + short caller)
//   - file output stays JSON-structured
//   - an optional chat sink mirrors warnings to an ops group (min-level + rate limited)
package logx
