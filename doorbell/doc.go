// Package doorbell is the admission control in front of the enclave.
//
// The enclave is one shared hardware resource with a fixed number of entry
// slots. Outermost calls take a slot and wait a bounded time for one to free
// up; calls made from inside an admitted call (a contract querying another
// contract) reuse their caller's slot and are bounded by a recursion ceiling
// instead.
package doorbell
