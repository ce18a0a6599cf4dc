package core

import (
	"github.com/sirupsen/logrus"

	"recordstore/internal/validation"
	"recordstore/pkg/domain"
)

// ServiceOptions carries the collaborators shared by the application services.
type ServiceOptions struct {
	Logger    logrus.FieldLogger
	Metrics   MetricsRecorder
	Clock     domain.Clock
	Validator validation.Validator
	Rules     *domain.RulesEngine
}

// ServiceOption customises ServiceOptions.
type ServiceOption func(*ServiceOptions)

// WithLogger sets the structured logger.
func WithLogger(logger logrus.FieldLogger) ServiceOption {
	return func(o *ServiceOptions) { o.Logger = logger }
}

// WithMetrics sets the operation metrics recorder.
func WithMetrics(metrics MetricsRecorder) ServiceOption {
	return func(o *ServiceOptions) { o.Metrics = metrics }
}

// WithClock overrides the creation timestamp source.
func WithClock(clock domain.Clock) ServiceOption {
	return func(o *ServiceOptions) { o.Clock = clock }
}

// WithValidator replaces the email and phone format checks.
func WithValidator(v validation.Validator) ServiceOption {
	return func(o *ServiceOptions) { o.Validator = v }
}

// WithRules replaces the rules evaluated before every commit.
func WithRules(rules *domain.RulesEngine) ServiceOption {
	return func(o *ServiceOptions) { o.Rules = rules }
}

// ResolveServiceOptions applies opts over the defaults: a discarding logger,
// no metrics, the UTC system clock, the regexp validator and the built-in
// rules.
func ResolveServiceOptions(opts ...ServiceOption) ServiceOptions {
	o := ServiceOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = DiscardLogger()
	}
	if o.Metrics == nil {
		o.Metrics = NoopRecorder{}
	}
	if o.Clock == nil {
		o.Clock = domain.SystemClock
	}
	if o.Validator == nil {
		o.Validator = validation.Default()
	}
	if o.Rules == nil {
		o.Rules = NewDefaultRulesEngine()
	}
	return o
}
