// Package extract converts contrast files to text across a pool of workers.
//
// Each worker owns one partition of WorkItems. For every scan direction of an
// item it lists the cope/varcope files in the model's stats directory,
// consults the status store, runs the converter for anything not yet built,
// and publishes each produced path to the status writer. Workers never write
// the store themselves.
package extract
