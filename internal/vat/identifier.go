// Package vat verifies EU VAT identification numbers against a primary
// registry with a commercial fallback, all under one time budget per request.
package vat

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// ErrInvalidIdentifier is returned for identifiers that fail normalization.
// Its message is the client-facing error code.
var ErrInvalidIdentifier = eris.New("invalid_identifier")

const minIdentifierLen = 3

// Identifier is a normalized VAT number split into its country prefix and
// the remainder.
type Identifier struct {
	CountryCode string
	Number      string
}

// String returns the full identifier, e.g. "DE123456789".
func (id Identifier) String() string {
	return id.CountryCode + id.Number
}

// Normalize strips all whitespace, uppercases and splits raw. No per-country
// format or checksum validation happens here.
func Normalize(raw string) (Identifier, error) {
	cleaned := strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw))

	runes := []rune(cleaned)
	if len(runes) < minIdentifierLen {
		return Identifier{}, ErrInvalidIdentifier
	}
	return Identifier{
		CountryCode: string(runes[:2]),
		Number:      string(runes[2:]),
	}, nil
}
