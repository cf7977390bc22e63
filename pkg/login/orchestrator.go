package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/model"
	"github.com/mpapenbr/itslogin/pkg/navigation"
	"github.com/mpapenbr/itslogin/pkg/oidc"
	"github.com/mpapenbr/itslogin/pkg/session"
)

const (
	AlertTitleError = "Error"
	AlertTitleLogin = "Login Error"

	configFetchKey = "clientConfig"
)

var ErrMissingAuthID = errors.New("no authId in verification response")

type (
	// Orchestrator drives the login sequence of the login screen.
	// At most one login attempt runs at a time.
	Orchestrator struct {
		mu        sync.Mutex
		state     State
		role      model.Role
		clientID  string
		lastAlert string
		attemptID string
		busy      bool
		closed    bool
		cancel    context.CancelFunc
		// done is cancelled by Close and ends background work like Prefetch
		done     context.Context
		shutdown context.CancelFunc

		configFetch singleflight.Group

		authService AuthService
		authorizer  oidc.Authorizer
		decoder     oidc.Decoder
		store       session.Store
		navigator   navigation.Navigator
		alerter     Alerter
		observer    Observer
		timeouts    Timeouts
		endpoints   oidc.Endpoints
		redirectURL string
		tracer      trace.Tracer
		meter       metric.Meter
		metrics     *loginMetrics
		log         *log.Logger
	}

	// Outcome describes a successful login
	Outcome struct {
		AttemptID   string
		Role        model.Role
		Email       string
		AuthID      string
		Destination navigation.Destination
	}
)

func New(opts ...Option) *Orchestrator {
	ret := &Orchestrator{
		state:       StateIdle,
		decoder:     oidc.DecoderFunc(oidc.DecodeIDToken),
		alerter:     AlerterFunc(func(string, string) {}),
		timeouts:    DefaultTimeouts(),
		endpoints:   oidc.DefaultEndpoints(),
		redirectURL: oidc.DefaultRedirectURL,
		log:         log.Default().Named("login"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.done, ret.shutdown = context.WithCancel(context.Background())
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("itslogin")
	}
	if ret.meter == nil {
		ret.meter = otel.Meter("itslogin")
	}
	ret.metrics = newLoginMetrics(ret.meter, ret.log)
	return ret
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Prefetch requests the client configuration ahead of the first login.
// A failure is reported to the user but leaves the screen usable; the
// configuration is requested again on the next login. Close aborts a
// running Prefetch without alerting.
//
//nolint:funlen // lock handling
func (o *Orchestrator) Prefetch(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.busy || o.clientID != "" {
		o.mu.Unlock()
		return nil
	}
	startAttempt := o.attemptID
	snap, changed, err := o.transitionLocked(StateFetchingConfig)
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.notify(snap, changed)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(o.done, cancel)()

	ctx, span := o.tracer.Start(ctx, "prefetch config")
	defer span.End()
	_, fetchErr := o.ensureClientID(ctx)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		if fetchErr == nil {
			return ErrClosed
		}
		return fmt.Errorf("%w: %w", ErrClosed, fetchErr)
	}
	if o.busy || o.attemptID != startAttempt {
		// a login took over, it reports the outcome itself
		o.mu.Unlock()
		return fetchErr
	}
	if fetchErr != nil {
		o.lastAlert = newConfigFetchError(nil).msg
	}
	changed = false
	// Reset may already have left StateFetchingConfig
	if o.state == StateFetchingConfig {
		snap, changed, err = o.transitionLocked(StateAwaitingRoleSelection)
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.notify(snap, changed)

	if fetchErr != nil {
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "config fetch failed")
		o.log.Warn("prefetching client config failed", log.ErrorField(fetchErr))
		o.alerter.Alert(AlertTitleError, newConfigFetchError(nil).msg)
	}
	return fetchErr
}

// Login runs the complete sequence for role. On success the session holds
// the authId returned by the auth service and the navigator was called
// exactly once. On failure the user is alerted and the orchestrator is back
// in role selection.
//
//nolint:funlen // sequence is easier to follow in one place
func (o *Orchestrator) Login(ctx context.Context, role model.Role) (*Outcome, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	attemptCtx, attemptID, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer o.end()

	start := time.Now()
	l := o.log.With(log.String("attemptId", attemptID), log.String("role", role.String()))
	attemptCtx, span := o.tracer.Start(attemptCtx, "login",
		trace.WithAttributes(
			attribute.String("login.attempt_id", attemptID),
			attribute.String("login.role", role.String())))
	defer span.End()
	o.metrics.attemptStarted(attemptCtx, role.String())

	finish := func(err error) (*Outcome, error) {
		result := resultLabel(err)
		o.metrics.attemptFinished(attemptCtx, role.String(), result,
			time.Since(start).Seconds())
		if err == nil {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return nil, o.fail(l, err)
	}

	clientID, err := o.stepClientID(attemptCtx)
	if err != nil {
		return finish(err)
	}

	if err = o.transition(StateAuthorizing, withRole(role)); err != nil {
		return finish(err)
	}
	authResult, err := o.stepAuthorize(attemptCtx, clientID)
	if err != nil {
		return finish(err)
	}

	if err = o.transition(StateDecodingToken); err != nil {
		return finish(err)
	}
	identity, err := o.stepDecode(attemptCtx, authResult)
	if err != nil {
		return finish(err)
	}

	if err = o.transition(StateVerifying); err != nil {
		return finish(err)
	}
	authID, err := o.stepVerify(attemptCtx, identity.Email)
	if err != nil {
		return finish(err)
	}

	if err = o.transition(StateRoutingSuccess); err != nil {
		return finish(err)
	}
	dest, err := o.stepRoute(attemptCtx, role, authID)
	if err != nil {
		return finish(err)
	}

	finish(nil)
	l.Info("login succeeded", log.String("destination", string(dest)))
	return &Outcome{
		AttemptID:   attemptID,
		Role:        role,
		Email:       identity.Email,
		AuthID:      authID,
		Destination: dest,
	}, nil
}

// Reset returns to role selection and clears the selected role.
// It is a no-op if nothing needs to be reset.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrLoginInProgress
	}
	if o.state == StateIdle {
		o.mu.Unlock()
		return nil
	}
	o.role = ""
	snap, changed, err := o.transitionLocked(StateAwaitingRoleSelection)
	o.mu.Unlock()
	o.notify(snap, changed)
	return err
}

// Close aborts a running attempt and a running Prefetch. Subsequent calls
// to Login and Prefetch return ErrClosed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.cancel != nil {
		o.cancel()
	}
	o.shutdown()
}

func (o *Orchestrator) begin(ctx context.Context) (context.Context, string, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, "", ErrClosed
	}
	if o.busy {
		o.mu.Unlock()
		return nil, "", ErrLoginInProgress
	}
	o.busy = true
	o.attemptID = uuid.NewString()
	o.lastAlert = ""
	attemptCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	attemptID := o.attemptID

	// a previous login succeeded, start over from role selection
	var snap Snapshot
	var changed bool
	if o.state == StateRoutingSuccess {
		o.role = ""
		snap, changed, _ = o.transitionLocked(StateAwaitingRoleSelection)
	}
	o.mu.Unlock()
	o.notify(snap, changed)
	return attemptCtx, attemptID, nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.busy = false
}

func (o *Orchestrator) stepClientID(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.clientID != "" {
		id := o.clientID
		o.mu.Unlock()
		return id, nil
	}
	snap, changed, err := o.transitionLocked(StateFetchingConfig)
	o.mu.Unlock()
	if err != nil {
		return "", err
	}
	o.notify(snap, changed)

	ctx, span := o.tracer.Start(ctx, "fetch config")
	defer span.End()
	id, err := o.ensureClientID(ctx)
	if err != nil {
		return "", newConfigFetchError(err)
	}
	return id, nil
}

// ensureClientID returns the cached client id or fetches it. Concurrent
// callers share a single request.
func (o *Orchestrator) ensureClientID(ctx context.Context) (string, error) {
	o.mu.Lock()
	id := o.clientID
	o.mu.Unlock()
	if id != "" {
		return id, nil
	}
	if o.authService == nil {
		return "", errors.New("no auth service configured")
	}
	ch := o.configFetch.DoChan(configFetchKey, func() (any, error) {
		// the shared request must survive the caller that started it
		fetchCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), o.timeouts.ConfigFetch)
		defer cancel()
		cfg, err := o.authService.FetchClientConfig(fetchCtx)
		o.metrics.configFetched(fetchCtx, err)
		if err != nil {
			return "", err
		}
		if cfg == nil || cfg.ClientID == "" {
			return "", errors.New("empty client id")
		}
		o.mu.Lock()
		o.clientID = cfg.ClientID
		o.mu.Unlock()
		o.log.Debug("client config received")
		return cfg.ClientID, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		//nolint:errcheck,forcetypeassert // always a string
		return res.Val.(string), nil
	}
}

//nolint:whitespace // editor/linter issue
func (o *Orchestrator) stepAuthorize(
	ctx context.Context,
	clientID string,
) (*model.AuthorizationResult, error) {
	if o.authorizer == nil {
		return nil, newAuthorizationError("Authorization failed",
			errors.New("no authorizer configured"))
	}
	ctx, span := o.tracer.Start(ctx, "authorize")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Authorization)
	defer cancel()

	cfg := oidc.NewProviderConfig(o.endpoints, clientID, o.redirectURL)
	res, err := o.authorizer.Authorize(ctx, cfg)
	if err != nil {
		if errors.Is(err, oidc.ErrUserCancelled) {
			return nil, newAuthorizationError("Authorization cancelled", err)
		}
		return nil, newAuthorizationError("Authorization failed", err)
	}
	if res == nil || res.IDToken == "" {
		return nil, newAuthorizationError("No idToken received", nil)
	}
	return res, nil
}

//nolint:whitespace // editor/linter issue
func (o *Orchestrator) stepDecode(
	ctx context.Context,
	res *model.AuthorizationResult,
) (*model.DecodedIdentity, error) {
	_, span := o.tracer.Start(ctx, "decode token")
	defer span.End()
	identity, err := o.decoder.Decode(res.IDToken)
	if err != nil {
		return nil, newTokenDecodeError(err)
	}
	if identity == nil || identity.Email == "" {
		return nil, newTokenDecodeError(oidc.ErrMissingEmail)
	}
	return identity, nil
}

func (o *Orchestrator) stepVerify(ctx context.Context, email string) (string, error) {
	if o.authService == nil {
		return "", newVerificationError("", errors.New("no auth service configured"))
	}
	ctx, span := o.tracer.Start(ctx, "verify")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Verification)
	defer cancel()

	res, err := o.authService.Verify(ctx, email)
	if err != nil {
		return "", newVerificationError("", err)
	}
	if !res.Succeeded() {
		server := ""
		if res != nil {
			server = res.Error
		}
		return "", newVerificationError(server, nil)
	}
	if res.AuthID == "" {
		return "", newVerificationError("", ErrMissingAuthID)
	}
	return res.AuthID, nil
}

//nolint:whitespace // editor/linter issue
func (o *Orchestrator) stepRoute(
	ctx context.Context,
	role model.Role,
	authID string,
) (navigation.Destination, error) {
	ctx, span := o.tracer.Start(ctx, "route")
	defer span.End()
	dest, err := navigation.DestinationForRole(role)
	if err != nil {
		return "", err
	}
	// nothing becomes visible once the screen is gone
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.store != nil {
		if err := o.store.Set(ctx, authID); err != nil {
			return "", fmt.Errorf("storing session: %w", err)
		}
	}
	if o.navigator != nil {
		params := navigation.Params{AuthID: authID}
		if err := o.navigator.Navigate(ctx, dest, params); err != nil {
			return "", fmt.Errorf("navigating to %s: %w", dest, err)
		}
	}
	return dest, nil
}

// fail moves through Failed back to role selection and alerts the user.
// Nothing is shown if the screen was closed meanwhile.
func (o *Orchestrator) fail(l *log.Logger, err error) error {
	o.mu.Lock()
	closed := o.closed
	if closed && !errors.Is(err, ErrClosed) {
		err = fmt.Errorf("%w: %w", ErrClosed, err)
	}
	msg := UserMessage(err)
	if !closed {
		o.lastAlert = msg
	}
	failedSnap, failedChanged, tErr := o.transitionLocked(StateFailed)
	if tErr != nil {
		l.Error("unexpected state", log.ErrorField(tErr))
	}
	o.role = ""
	resetSnap, resetChanged, tErr := o.transitionLocked(StateAwaitingRoleSelection)
	if tErr != nil {
		l.Error("unexpected state", log.ErrorField(tErr))
	}
	o.mu.Unlock()

	o.notify(failedSnap, failedChanged)
	if closed {
		l.Info("login aborted", log.ErrorField(err))
	} else {
		l.Warn("login failed", log.ErrorField(err))
		o.alerter.Alert(AlertTitleLogin, msg)
	}
	o.notify(resetSnap, resetChanged)
	return err
}

type transitionOption func(*Orchestrator)

func withRole(role model.Role) transitionOption {
	return func(o *Orchestrator) {
		o.role = role
	}
}

func (o *Orchestrator) transition(to State, opts ...transitionOption) error {
	o.mu.Lock()
	for _, opt := range opts {
		opt(o)
	}
	snap, changed, err := o.transitionLocked(to)
	o.mu.Unlock()
	o.notify(snap, changed)
	return err
}

func (o *Orchestrator) transitionLocked(to State) (Snapshot, bool, error) {
	from := o.state
	if from == to {
		return o.snapshotLocked(), false, nil
	}
	if !canTransition(from, to) {
		return o.snapshotLocked(), false,
			fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if to == StateAuthorizing && o.role == "" {
		return o.snapshotLocked(), false,
			fmt.Errorf("%w: no role selected", ErrIllegalTransition)
	}
	o.state = to
	o.log.Debug("state changed",
		log.String("from", from.String()),
		log.String("to", to.String()))
	return o.snapshotLocked(), true, nil
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		State:     o.state,
		Role:      o.role,
		HasConfig: o.clientID != "",
		LastAlert: o.lastAlert,
		AttemptID: o.attemptID,
	}
}

func (o *Orchestrator) notify(snap Snapshot, changed bool) {
	if changed && o.observer != nil {
		o.observer(snap)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		return "aborted"
	case errors.Is(err, ErrConfigFetch):
		return "config"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrTokenDecode):
		return "decode"
	case errors.Is(err, ErrVerification):
		return "verification"
	default:
		return "routing"
	}
}
