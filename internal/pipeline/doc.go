// Package pipeline drives the extraction, clean and combine stages from a
// loaded configuration.
//
// Each entry point owns the lifetime of the run-scoped pieces: the status
// store handle, the log relay, the status queue and its single writer. The
// queue is created here and passed explicitly to every producer.
package pipeline
