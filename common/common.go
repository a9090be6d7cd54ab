// Package common holds process wide settings shared by the binaries.
package common

// PackageName labels metrics and logs.
const PackageName = "secret-enclave"

// Version is set at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"
