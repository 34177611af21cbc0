// Package combine reduces every built derived file of one task into a single
// Parquet table.
//
// The stage is read-only with respect to the status store. Workers read
// disjoint slices of the record set and hand their rows back over a channel;
// only the coordinator touches the output file.
package combine
