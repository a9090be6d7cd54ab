package enclave

import (
	"context"

	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// SeedProvider serves seed exchange requests through the entrypoint layer
// so HTTP callers are admitted like any other host call.
type SeedProvider struct {
	e *Enclave
}

func (e *Enclave) SeedProvider() *SeedProvider {
	return &SeedProvider{e: e}
}

func (p *SeedProvider) Authenticate(ctx context.Context, cert []byte) ([]byte, error) {
	res := p.e.AuthenticateNewNode(ctx, nil, cert)
	return res.Output, res.Err()
}

func (p *SeedProvider) PublicKey() (interfaces.PublicKey, error) {
	return p.e.SeedExchangePublicKey()
}
