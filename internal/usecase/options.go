package usecase

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/domain"
	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/infra/logger"
)

const tracerName = "github.com/arklim/account-auth-service/internal/usecase"

// Metric outcomes.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeError   = "error"
)

// Dependencies are the collaborators shared by the account services.
type Dependencies struct {
	Users    port.UserRepository
	Hasher   port.PasswordHasher
	Policy   port.PasswordPolicyValidator
	Tokens   port.TokenIssuer
	Codes    port.CodeGenerator
	Ledger   *RevocationLedger
	Notifier *Notifier
}

func (d Dependencies) validate() error {
	var errs []error
	if d.Users == nil {
		errs = append(errs, errors.New("user repository is required"))
	}
	if d.Hasher == nil {
		errs = append(errs, errors.New("password hasher is required"))
	}
	if d.Policy == nil {
		errs = append(errs, errors.New("password policy is required"))
	}
	if d.Tokens == nil {
		errs = append(errs, errors.New("token issuer is required"))
	}
	if d.Codes == nil {
		errs = append(errs, errors.New("code generator is required"))
	}
	if d.Ledger == nil {
		errs = append(errs, errors.New("revocation ledger is required"))
	}
	if d.Notifier == nil {
		errs = append(errs, errors.New("notifier is required"))
	}
	return errors.Join(errs...)
}

// Option customises a service.
type Option func(*runtime)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *runtime) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithEventPublisher publishes domain events through events.
func WithEventPublisher(events port.EventPublisher) Option {
	return func(r *runtime) {
		if events != nil {
			r.events = events
		}
	}
}

// WithMetrics records workflow outcomes through recorder.
func WithMetrics(recorder port.AuthEventRecorder) Option {
	return func(r *runtime) {
		if recorder != nil {
			r.metrics = recorder
		}
	}
}

// runtime holds the ambient collaborators every service shares.
type runtime struct {
	now     func() time.Time
	logger  *zap.Logger
	events  port.EventPublisher
	metrics port.AuthEventRecorder
	tracer  trace.Tracer
}

func newRuntime(opts []Option) runtime {
	r := runtime{
		now:     time.Now,
		logger:  zap.NewNop(),
		events:  discardEvents{},
		metrics: discardMetrics{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r runtime) clock() time.Time {
	return r.now().UTC()
}

func (r runtime) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, r.logger)
}

// begin opens a span for a workflow. The returned func records the outcome on
// the span and the metrics and must be deferred with a pointer to the named error.
func (r runtime) begin(ctx context.Context, event string) (context.Context, func(*error)) {
	ctx, span := r.tracer.Start(ctx, "usecase."+event)
	return ctx, func(errp *error) {
		outcome := outcomeSuccess
		if errp != nil && *errp != nil {
			outcome = outcomeFailure
			if KindOf(*errp) == KindInternal {
				outcome = outcomeError
				span.RecordError(*errp)
				span.SetStatus(codes.Error, string(KindInternal))
			}
		}
		r.metrics.Record(event, outcome)
		span.End()
	}
}

func (r runtime) publish(ctx context.Context, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		r.log(ctx).Warn("failed to publish event", zap.String("event", name), zap.Error(err))
	}
}

type discardEvents struct{}

func (discardEvents) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error {
	return nil
}

func (discardEvents) PublishEmailVerified(context.Context, domain.EmailVerifiedEvent) error {
	return nil
}

func (discardEvents) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	return nil
}

func (discardEvents) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	return nil
}

func (discardEvents) PublishSessionsRevoked(context.Context, domain.SessionsRevokedEvent) error {
	return nil
}

func (discardEvents) PublishUserDeleted(context.Context, domain.UserDeletedEvent) error {
	return nil
}

type discardMetrics struct{}

func (discardMetrics) Record(string, string) {}
