// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - leveled convenience functions (InfoKV, WarnKV, etc.).
//
// All services accept a context and extract the logger from it, enabling
// scoped, structured logging throughout the codebase. Keeping logs off
// stdout matters here: check and status output is consumed by scripts.
//
// The package has no error or fatal helpers. Failures travel up as errors
// and are reported once by the command layer, which also decides the
// process exit code.
package logger
