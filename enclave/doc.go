// Package enclave is the entrypoint layer of the trusted core.
//
// Each entrypoint takes raw byte slices, checks their sizes before use,
// enters the call context, waits for a doorbell slot and maps any failure
// to a Result with one coarse Status. Panics are recovered at the boundary;
// a reserved buffer is released first so the recovery path can allocate.
package enclave
