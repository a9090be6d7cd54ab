package enclave

import (
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// Status is the coarse outcome of an entrypoint.
type Status int

const (
	StatusSuccess Status = iota
	StatusConfiguration
	StatusTrust
	StatusDecryption
	StatusBusy
	StatusResourceExhausted
	StatusInvalidInput
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusConfiguration:
		return "configuration_error"
	case StatusTrust:
		return "trust_error"
	case StatusDecryption:
		return "decryption_error"
	case StatusBusy:
		return "busy"
	case StatusResourceExhausted:
		return "resource_exhausted"
	case StatusInvalidInput:
		return "invalid_input"
	default:
		return "internal_error"
	}
}

// Result is what every entrypoint returns. Output is set only on success.
type Result struct {
	Status Status
	Reason string
	Output []byte

	err error
}

// Err returns the underlying error, nil on success.
func (r Result) Err() error {
	return r.err
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func statusOf(kind interfaces.ErrorKind) Status {
	switch kind {
	case interfaces.KindNone:
		return StatusSuccess
	case interfaces.KindConfiguration:
		return StatusConfiguration
	case interfaces.KindTrust:
		return StatusTrust
	case interfaces.KindCrypto:
		return StatusDecryption
	case interfaces.KindTransient:
		return StatusBusy
	case interfaces.KindResource:
		return StatusResourceExhausted
	case interfaces.KindInput:
		return StatusInvalidInput
	default:
		return StatusInternal
	}
}

// resultOf maps err to a Result. Cryptographic and internal failures get a
// fixed reason so the cause is not observable by the caller.
func resultOf(output []byte, err error) Result {
	if err == nil {
		return Result{Status: StatusSuccess, Output: output}
	}
	status := statusOf(interfaces.KindOf(err))
	reason := err.Error()
	switch status {
	case StatusDecryption:
		reason = interfaces.ErrDecryption.Error()
	case StatusInternal:
		reason = "internal error"
	}
	return Result{Status: status, Reason: reason, err: err}
}
