package vat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vat-gateway/internal/config"
	"github.com/sells-group/vat-gateway/internal/resilience"
)

// ErrUnverifiable is returned by Verify under a fail-closed policy when no
// provider produced an answer within the budget.
var ErrUnverifiable = eris.New("vat_unverifiable")

const (
	providerPrimary   = "primary"
	providerSecondary = "secondary"
)

// Policy bounds one verification.
type Policy struct {
	// Budget is the deadline for the whole verification, fixed at entry.
	Budget time.Duration
	// PrimaryCap, RetryCap and SecondaryCap bound single attempts; each is
	// further capped by what is left of Budget.
	PrimaryCap   time.Duration
	RetryCap     time.Duration
	SecondaryCap time.Duration
	// FailClosed returns ErrUnverifiable instead of the permissive default.
	FailClosed bool
}

// DefaultPolicy returns the production policy: 20s budget, 8s/6s/8s caps,
// fail-open.
func DefaultPolicy() Policy {
	return Policy{
		Budget:       20 * time.Second,
		PrimaryCap:   8 * time.Second,
		RetryCap:     6 * time.Second,
		SecondaryCap: 8 * time.Second,
	}
}

// PolicyFromConfig builds a Policy from validated configuration.
func PolicyFromConfig(cfg config.VATConfig) Policy {
	return Policy{
		Budget:       cfg.Budget(),
		PrimaryCap:   cfg.PrimaryCap(),
		RetryCap:     cfg.RetryCap(),
		SecondaryCap: cfg.SecondaryCap(),
		FailClosed:   cfg.FailureMode == config.FailClosed,
	}
}

// Orchestrator sequences primary, primary retry and secondary attempts under
// one deadline. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	primary   Provider
	secondary Provider
	policy    Policy
	metrics   *Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records attempts and decisions in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an Orchestrator. secondary may be nil, in which case
// the fallback step fails immediately.
func NewOrchestrator(primary, secondary Provider, policy Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary:   primary,
		secondary: secondary,
		policy:    policy,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Verify normalizes raw and runs the verification. The only errors returned
// are ErrInvalidIdentifier, raised before any provider is contacted, and
// ErrUnverifiable under a fail-closed policy. Provider failures never escape.
func (o *Orchestrator) Verify(ctx context.Context, raw string) (Result, error) {
	id, err := Normalize(raw)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	budget := resilience.NewBudget(o.policy.Budget)
	log := zap.L().With(
		zap.String("check_id", uuid.NewString()),
		zap.String("country", id.CountryCode),
	)

	if ans, ok := o.tryPrimary(ctx, log, budget, id); ok {
		return o.finish(log, start, ans), nil
	}
	if ans, ok := o.trySecondary(ctx, log, budget, id); ok {
		return o.finish(log, start, ans), nil
	}
	return o.decide(log, start, budget)
}

func (o *Orchestrator) tryPrimary(ctx context.Context, log *zap.Logger, budget resilience.Budget, id Identifier) (Answer, bool) {
	ans, err := o.attempt(ctx, log, budget, providerPrimary, o.policy.PrimaryCap, o.primary, id)
	if err == nil {
		return ans, true
	}
	if ClassifyFault(err) != FaultTransient {
		return Answer{}, false
	}

	ans, err = o.attempt(ctx, log, budget, providerPrimary, o.policy.RetryCap, o.primary, id)
	return ans, err == nil
}

func (o *Orchestrator) trySecondary(ctx context.Context, log *zap.Logger, budget resilience.Budget, id Identifier) (Answer, bool) {
	if o.secondary == nil {
		log.Debug("vat: secondary provider not configured")
		return Answer{}, false
	}
	ans, err := o.attempt(ctx, log, budget, providerSecondary, o.policy.SecondaryCap, o.secondary, id)
	return ans, err == nil
}

// attempt runs one provider call bounded by min(limit, remaining budget). It
// returns resilience.ErrNoTime without calling p when the budget is spent.
func (o *Orchestrator) attempt(ctx context.Context, log *zap.Logger, budget resilience.Budget, provider string, limit time.Duration, p Provider, id Identifier) (Answer, error) {
	allotted, ok := budget.Allot(limit)
	if !ok {
		log.Warn("vat: budget exhausted, skipping attempt", zap.String("provider", provider))
		return Answer{}, resilience.ErrNoTime
	}

	started := time.Now()
	ans, err := resilience.Bounded(ctx, allotted, func(ctx context.Context) (Answer, error) {
		return p.Check(ctx, id)
	})
	a := Attempt{
		Provider:  provider,
		StartedAt: started,
		Outcome:   outcomeOf(err),
		Elapsed:   time.Since(started),
	}
	o.metrics.ObserveAttempt(a)

	fields := []zap.Field{
		zap.String("provider", a.Provider),
		zap.String("outcome", string(a.Outcome)),
		zap.Duration("elapsed", a.Elapsed),
		zap.Duration("allotted", allotted),
	}
	if err != nil {
		log.Warn("vat: provider attempt failed", append(fields, zap.Error(err))...)
		return Answer{}, err
	}
	log.Debug("vat: provider attempt succeeded", fields...)
	if ans.Source == "" {
		ans.Source = Source(provider)
	}
	return ans, nil
}

func (o *Orchestrator) finish(log *zap.Logger, start time.Time, ans Answer) Result {
	elapsed := time.Since(start)
	o.metrics.ObserveVerification(string(ans.Source), elapsed)
	log.Info("vat: verified",
		zap.String("source", string(ans.Source)),
		zap.Bool("valid", ans.Valid),
		zap.Duration("elapsed", elapsed),
	)
	return Result{
		Valid:   ans.Valid,
		Name:    optional(ans.Name),
		Address: optional(ans.Address),
		Source:  ans.Source,
	}
}

func (o *Orchestrator) decide(log *zap.Logger, start time.Time, budget resilience.Budget) (Result, error) {
	elapsed := time.Since(start)
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Bool("budget_exhausted", budget.Exhausted()),
	}

	if o.policy.FailClosed {
		o.metrics.ObserveVerification("unverifiable", elapsed)
		log.Error("vat: no provider answered, failing closed", fields...)
		return Result{}, ErrUnverifiable
	}

	o.metrics.ObserveVerification(string(SourceUnverified), elapsed)
	log.Warn("vat: no provider answered, failing open", fields...)
	return Result{Valid: true, Source: SourceUnverified}, nil
}
