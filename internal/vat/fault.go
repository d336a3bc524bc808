package vat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sells-group/vat-gateway/internal/resilience"
	"github.com/sells-group/vat-gateway/pkg/vies"
)

// FaultClass decides whether a failed primary attempt is worth retrying.
type FaultClass int

const (
	FaultPermanent FaultClass = iota
	FaultTransient
)

func (c FaultClass) String() string {
	if c == FaultTransient {
		return "transient"
	}
	return "permanent"
}

// transientFaultCodes are VIES fault strings meaning "ask again later".
var transientFaultCodes = map[string]bool{
	"MS_UNAVAILABLE":            true,
	"SERVICE_UNAVAILABLE":       true,
	"TIMEOUT":                   true,
	"MS_MAX_CONCURRENT_REQ":     true,
	"GLOBAL_MAX_CONCURRENT_REQ": true,
}

// permanentFaultCodes are VIES fault strings that a retry cannot fix.
var permanentFaultCodes = map[string]bool{
	"INVALID_INPUT":          true,
	"INVALID_REQUESTER_INFO": true,
	"VAT_BLOCKED":            true,
	"IP_BLOCKED":             true,
}

// transientFaultPatterns are matched case-insensitively against fault text
// that carries no recognised code.
var transientFaultPatterns = []string{
	"unavailable",
	"timeout",
}

// ClassifyFault maps a primary provider error to a FaultClass. A lost race
// against the attempt timer and a VIES fault whose code or text signals
// temporary unavailability are transient. Malformed responses, network
// failures and any other fault are permanent.
func ClassifyFault(err error) FaultClass {
	if err == nil {
		return FaultPermanent
	}
	if errors.Is(err, resilience.ErrAttemptTimeout) {
		return FaultTransient
	}

	var fault *vies.Fault
	if errors.As(err, &fault) {
		code := strings.ToUpper(strings.TrimSpace(fault.String))
		switch {
		case transientFaultCodes[code]:
			return FaultTransient
		case permanentFaultCodes[code]:
			return FaultPermanent
		}
		text := strings.ToLower(fault.String + " " + fault.Detail)
		for _, p := range transientFaultPatterns {
			if strings.Contains(text, p) {
				return FaultTransient
			}
		}
		return FaultPermanent
	}

	var se *vies.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return FaultTransient
		}
	}
	return FaultPermanent
}

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, resilience.ErrAttemptTimeout):
		return OutcomeTimeout
	case ClassifyFault(err) == FaultTransient:
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}
