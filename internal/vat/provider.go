package vat

import (
	"context"

	"github.com/sells-group/vat-gateway/pkg/vatapi"
	"github.com/sells-group/vat-gateway/pkg/vies"
)

// Answer is what a provider reports for one identifier.
type Answer struct {
	Valid   bool
	Name    string
	Address string
	Source  Source
}

// Provider checks one identifier against a remote source.
type Provider interface {
	Check(ctx context.Context, id Identifier) (Answer, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, id Identifier) (Answer, error)

// Check calls f.
func (f ProviderFunc) Check(ctx context.Context, id Identifier) (Answer, error) {
	return f(ctx, id)
}

// NewPrimary wraps a VIES client. The WSDL fetch and checkVat call run as
// one unit under the caller's context.
func NewPrimary(c vies.Client) Provider {
	return ProviderFunc(func(ctx context.Context, id Identifier) (Answer, error) {
		r, err := c.CheckVAT(ctx, id.CountryCode, id.Number)
		if err != nil {
			return Answer{}, err
		}
		return Answer{
			Valid:   r.Valid,
			Name:    r.Name,
			Address: r.Address,
			Source:  SourcePrimary,
		}, nil
	})
}

// NewSecondary wraps the commercial VAT API client. The source reflects
// which endpoint generation answered.
func NewSecondary(c vatapi.Client) Provider {
	return ProviderFunc(func(ctx context.Context, id Identifier) (Answer, error) {
		r, err := c.Validate(ctx, id.String())
		if err != nil {
			return Answer{}, err
		}
		src := SourceSecondary
		if r.Endpoint == vatapi.EndpointLegacy {
			src = SourceSecondaryLegacy
		}
		return Answer{
			Valid:   r.Valid,
			Name:    r.CompanyName,
			Address: r.CompanyAddress,
			Source:  src,
		}, nil
	})
}
