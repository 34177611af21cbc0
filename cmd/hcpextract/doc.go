// Package main hosts the hcpextract CLI.
//
// Commands resolve configuration lazily through commandContext and hand off
// to internal/pipeline for extraction, combine and clean runs. Study tree
// helpers (list, missing-dtseries) and scheduler submission live in their
// own internal packages; this package only parses flags and renders tables.
package main
