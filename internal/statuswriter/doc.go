// Package statuswriter funnels every status update through one goroutine.
//
// Workers publish produced paths onto a Queue; a single Writer drains it,
// batching events and committing each batch to the status store in one
// transaction. Cooperating processes that share a store serialize their
// commits through an advisory file lock. The writer cycles
// idle → batching → committing → idle and ends in stopped, either after the
// stop sentinel sent by Queue.Close or after a commit failure, which is
// returned to the caller rather than dropped.
package statuswriter
