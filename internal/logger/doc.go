// Package logger wraps zap with a console encoder, a runtime-adjustable level
// and context helpers (ToContext/FromContext/WithName/WithKV).
//
// Services take a context and log through it, so tests can swap in an
// observed logger without touching globals.
package logger
