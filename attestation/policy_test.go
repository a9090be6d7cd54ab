package attestation

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	measurementA = HexBytes{0xaa, 0xaa}
	measurementB = HexBytes{0xbb, 0xbb}
	signerA      = HexBytes{0x5a}
)

func basePolicy() Policy {
	return Policy{
		SigningMethod:       SigningMethodMeasurement,
		AllowedMeasurements: []HexBytes{measurementA},
		AllowedSigners:      []HexBytes{signerA},
		MinSVN:              2,
	}
}

func goodReport() *Report {
	return &Report{
		Type:        TypeSoftware,
		Measurement: measurementA,
		Signer:      signerA,
		SVN:         3,
		Status:      StatusOK,
	}
}

func resultOf(err error) AuthResult {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Result
	}
	return AuthSuccess
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr bool
	}{
		{"valid", func(p *Policy) {}, false},
		{"production debug", func(p *Policy) { p.Production = true; p.AllowDebug = true }, true},
		{"production degraded", func(p *Policy) { p.Production = true; p.AllowDegradedStatus = true }, true},
		{"production none", func(p *Policy) { p.Production = true; p.SigningMethod = SigningMethodNone }, true},
		{"measurement without list", func(p *Policy) { p.AllowedMeasurements = nil }, true},
		{"signer without list", func(p *Policy) { p.SigningMethod = SigningMethodSigner; p.AllowedSigners = nil }, true},
		{"unknown method", func(p *Policy) { p.SigningMethod = "FOO" }, true},
		{"production strict", func(p *Policy) { p.Production = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, interfaces.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPolicy_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		policy func(p *Policy)
		report func(r *Report)
		want   AuthResult
	}{
		{"accepted", nil, nil, AuthSuccess},
		{"sw hardening accepted", nil, func(r *Report) { r.Status = StatusSwHardeningNeeded }, AuthSuccess},
		{"group out of date", nil, func(r *Report) { r.Status = StatusGroupOutOfDate }, AuthGroupOutOfDate},
		{"group out of date allowed", func(p *Policy) { p.AllowDegradedStatus = true }, func(r *Report) { r.Status = StatusGroupOutOfDate }, AuthSuccess},
		{"revoked", func(p *Policy) { p.AllowDegradedStatus = true }, func(r *Report) { r.Status = StatusGroupRevoked }, AuthGroupRevoked},
		{"configuration needed", nil, func(r *Report) { r.Status = StatusConfigurationNeeded }, AuthConfigurationNeeded},
		{"unknown status", nil, func(r *Report) { r.Status = "WHATEVER" }, AuthBadQuoteStatus},
		{"advisory rejected", nil, func(r *Report) { r.Advisories = []string{"INTEL-SA-00334"} }, AuthAdvisoryNotAllowed},
		{"advisory listed", func(p *Policy) { p.AllowedAdvisories = []string{"INTEL-SA-00334"} }, func(r *Report) { r.Advisories = []string{"INTEL-SA-00334"} }, AuthSuccess},
		{"advisory degraded", func(p *Policy) { p.AllowDegradedStatus = true }, func(r *Report) { r.Advisories = []string{"INTEL-SA-00615"} }, AuthSuccess},
		{"debug", nil, func(r *Report) { r.Debug = true }, AuthDebugNotAllowed},
		{"debug allowed", func(p *Policy) { p.AllowDebug = true }, func(r *Report) { r.Debug = true }, AuthSuccess},
		{"measurement mismatch", nil, func(r *Report) { r.Measurement = measurementB }, AuthMeasurementMismatch},
		{"signer only ignores measurement", func(p *Policy) { p.SigningMethod = SigningMethodSigner }, func(r *Report) { r.Measurement = measurementB }, AuthSuccess},
		{"signer mismatch", nil, func(r *Report) { r.Signer = HexBytes{0x01} }, AuthSignerMismatch},
		{"svn too low", nil, func(r *Report) { r.SVN = 1 }, AuthSVNTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePolicy()
			if tt.policy != nil {
				tt.policy(&p)
			}
			r := goodReport()
			if tt.report != nil {
				tt.report(r)
			}
			err := p.Evaluate(r, testLogger())
			assert.Equal(t, tt.want, resultOf(err))
			if tt.want != AuthSuccess {
				assert.ErrorIs(t, err, interfaces.ErrAttestation)
			}
		})
	}
}

// A policy that rejects a report keeps rejecting it after any tightening.
func TestPolicy_Monotone(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []QuoteStatus{StatusOK, StatusSwHardeningNeeded, StatusGroupOutOfDate, StatusGroupRevoked, StatusConfigurationNeeded}
	measurements := []HexBytes{measurementA, measurementB}
	advisories := []string{"SA-1", "SA-2"}

	randomReport := func() *Report {
		r := &Report{
			Measurement: measurements[rng.Intn(2)],
			Signer:      signerA,
			SVN:         uint32(rng.Intn(5)),
			Status:      statuses[rng.Intn(len(statuses))],
			Debug:       rng.Intn(2) == 0,
		}
		if rng.Intn(2) == 0 {
			r.Advisories = []string{advisories[rng.Intn(2)]}
		}
		return r
	}

	loose := Policy{
		SigningMethod:       SigningMethodMeasurement,
		AllowedMeasurements: measurements,
		AllowedSigners:      []HexBytes{signerA},
		MinSVN:              1,
		AllowDegradedStatus: true,
		AllowedAdvisories:   advisories,
		AllowDebug:          true,
	}

	tightenings := []func(p Policy) Policy{
		func(p Policy) Policy { p.MinSVN += 2; return p },
		func(p Policy) Policy { p.AllowDegradedStatus = false; return p },
		func(p Policy) Policy { p.AllowDebug = false; return p },
		func(p Policy) Policy { p.AllowedAdvisories = p.AllowedAdvisories[:1]; return p },
		func(p Policy) Policy { p.AllowedMeasurements = p.AllowedMeasurements[:1]; return p },
	}

	for i := 0; i < 500; i++ {
		r := randomReport()
		policy := loose
		for _, idx := range rng.Perm(len(tightenings)) {
			before := policy.Evaluate(r, testLogger())
			policy = tightenings[idx](policy)
			after := policy.Evaluate(r, testLogger())
			if before != nil {
				require.Error(t, after, "tightening accepted a rejected report: %+v", r)
			}
		}
	}
}

func TestAuthError(t *testing.T) {
	err := reject(AuthMeasurementMismatch, "received %x", []byte{1})
	assert.ErrorIs(t, err, interfaces.ErrAttestation)
	assert.Contains(t, err.Error(), "different code measurement")
	assert.Equal(t, interfaces.KindTrust, interfaces.KindOf(err))
}

func TestHexBytes_Text(t *testing.T) {
	var h HexBytes
	require.NoError(t, h.UnmarshalText([]byte("0xdead")))
	assert.Equal(t, HexBytes{0xde, 0xad}, h)
	out, err := h.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "dead", string(out))
	assert.Error(t, h.UnmarshalText([]byte("zz")))
}
