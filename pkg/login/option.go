package login

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/model"
	"github.com/mpapenbr/itslogin/pkg/navigation"
	"github.com/mpapenbr/itslogin/pkg/oidc"
	"github.com/mpapenbr/itslogin/pkg/session"
)

type (
	Option func(*Orchestrator)

	// AuthService is the backend the orchestrator talks to
	AuthService interface {
		FetchClientConfig(ctx context.Context) (*model.OAuthClientConfig, error)
		Verify(ctx context.Context, email string) (*model.VerificationResult, error)
	}

	// Alerter presents user visible errors
	Alerter interface {
		Alert(title, message string)
	}
	AlerterFunc func(title, message string)

	// Observer is notified after every state change
	Observer func(Snapshot)

	Timeouts struct {
		ConfigFetch   time.Duration
		Authorization time.Duration
		Verification  time.Duration
	}
)

func (f AlerterFunc) Alert(title, message string) {
	f(title, message)
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		ConfigFetch:   10 * time.Second,
		Authorization: 5 * time.Minute,
		Verification:  10 * time.Second,
	}
}

func WithAuthService(s AuthService) Option {
	return func(o *Orchestrator) {
		o.authService = s
	}
}

func WithAuthorizer(a oidc.Authorizer) Option {
	return func(o *Orchestrator) {
		o.authorizer = a
	}
}

func WithDecoder(d oidc.Decoder) Option {
	return func(o *Orchestrator) {
		o.decoder = d
	}
}

func WithSessionStore(s session.Store) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

func WithNavigator(n navigation.Navigator) Option {
	return func(o *Orchestrator) {
		o.navigator = n
	}
}

func WithAlerter(a Alerter) Option {
	return func(o *Orchestrator) {
		o.alerter = a
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithTimeouts replaces the non-zero values of the default timeouts
func WithTimeouts(t Timeouts) Option {
	return func(o *Orchestrator) {
		if t.ConfigFetch > 0 {
			o.timeouts.ConfigFetch = t.ConfigFetch
		}
		if t.Authorization > 0 {
			o.timeouts.Authorization = t.Authorization
		}
		if t.Verification > 0 {
			o.timeouts.Verification = t.Verification
		}
	}
}

func WithEndpoints(ep oidc.Endpoints) Option {
	return func(o *Orchestrator) {
		o.endpoints = ep
	}
}

func WithRedirectURL(url string) Option {
	return func(o *Orchestrator) {
		o.redirectURL = url
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func WithMetrics(meter metric.Meter) Option {
	return func(o *Orchestrator) {
		o.meter = meter
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}
