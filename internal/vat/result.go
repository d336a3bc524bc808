package vat

import "time"

// Source records which path produced a Result.
type Source string

const (
	SourcePrimary         Source = "primary"
	SourceSecondary       Source = "secondary"
	SourceSecondaryLegacy Source = "secondary-legacy"
	SourceUnverified      Source = "unverified-default"
)

// Result is the final decision for one verification. Name and Address are
// nil when unknown.
type Result struct {
	Valid   bool
	Name    *string
	Address *string
	Source  Source
}

// Outcome classifies a single provider attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeTransient Outcome = "transient"
	OutcomePermanent Outcome = "permanent"
)

// Attempt is the record of one provider call. It drives orchestration and
// observability only.
type Attempt struct {
	Provider  string
	StartedAt time.Time
	Outcome   Outcome
	Elapsed   time.Duration
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
