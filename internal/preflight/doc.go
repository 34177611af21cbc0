// Package preflight checks that the directories and external commands a
// run depends on are usable before any work is scheduled.
//
// The CLI "hcpextract preflight" command prints every result; extract and
// submit call RunAll and refuse to start when a required check fails.
package preflight
