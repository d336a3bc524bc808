// Package country maps free-text country names to ISO 3166-1 alpha-2 codes.
package country

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DefaultCode is used when a name cannot be resolved and no other default is
// configured.
const DefaultCode = "DE"

// Resolver maps country names to codes. It is read-only after construction
// and safe for concurrent use.
type Resolver struct {
	names    map[string]string
	fallback string
}

// NewResolver creates a resolver over the builtin table plus aliases. An empty
// fallback selects DefaultCode.
func NewResolver(fallback string, aliases map[string]string) (*Resolver, error) {
	if fallback == "" {
		fallback = DefaultCode
	}
	code, ok := parseCode(fallback)
	if !ok {
		return nil, eris.Errorf("country: invalid default code %q", fallback)
	}

	names := make(map[string]string, len(builtin)+len(aliases))
	for k, v := range builtin {
		names[k] = v
	}
	for name, c := range aliases {
		parsed, ok := parseCode(c)
		if !ok {
			return nil, eris.Errorf("country: alias %q maps to invalid code %q", name, c)
		}
		names[fold(name)] = parsed
	}

	return &Resolver{names: names, fallback: code}, nil
}

// Lookup returns the code for name. Known names, alpha-2 and alpha-3 codes
// are accepted in any case and with or without diacritics.
func (r *Resolver) Lookup(name string) (string, bool) {
	key := fold(name)
	if key == "" {
		return "", false
	}
	if code, ok := r.names[key]; ok {
		return code, true
	}
	return parseCode(key)
}

// Resolve is Lookup with the configured fallback for unknown names.
func (r *Resolver) Resolve(name string) string {
	if code, ok := r.Lookup(name); ok {
		return code
	}
	if strings.TrimSpace(name) != "" {
		zap.L().Debug("country: unknown name, using default",
			zap.String("name", name),
			zap.String("default", r.fallback),
		)
	}
	return r.fallback
}

// Default returns the fallback code.
func (r *Resolver) Default() string {
	return r.fallback
}

// LoadAliases reads a YAML mapping of country name to code, e.g.
//
//	"Deutsches Reich": DE
//	"Kingdom of the Netherlands": NL
func LoadAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "country: read aliases %s", path)
	}
	var aliases map[string]string
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, eris.Wrapf(err, "country: parse aliases %s", path)
	}
	return aliases, nil
}

// parseCode accepts two- or three-letter ISO region codes and returns the
// canonical alpha-2 form.
func parseCode(s string) (string, bool) {
	if len(s) != 2 && len(s) != 3 {
		return "", false
	}
	for _, c := range s {
		if !unicode.IsLetter(c) {
			return "", false
		}
	}
	region, err := language.ParseRegion(s)
	if err != nil || !region.IsCountry() {
		return "", false
	}
	code := region.String()
	if len(code) != 2 {
		return "", false
	}
	return code, true
}

// fold lowercases, strips diacritics and collapses whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
