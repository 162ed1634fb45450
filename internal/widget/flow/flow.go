// Package flow drives the widget's passkey ceremonies: registration and
// authentication in their identified and usernameless variants, and the
// reconciliation of verified outcomes into the session and the hint cache.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"
	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
	"github.com/shopembed/referral-widget/internal/hint"
	"github.com/shopembed/referral-widget/internal/widget/api"
	"github.com/shopembed/referral-widget/internal/widget/authenticator"
	"github.com/shopembed/referral-widget/internal/widget/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is the position of the current ceremony attempt.
type State string

const (
	StateIdle                  State = "idle"
	StateFetchingOptions       State = "fetching_options"
	StateAwaitingAuthenticator State = "awaiting_authenticator"
	StateVerifying             State = "verifying"
	StateSucceeded             State = "succeeded"
	StateFailed                State = "failed"
)

// Route names the page a verified ceremony leads to.
type Route string

const (
	// RouteReward is shown to a referred visitor who has not claimed yet.
	RouteReward Route = "reward"
	// RouteShare is shown to the code owner or a visitor without a code.
	RouteShare Route = "share"
)

// Backend is the slice of the API client the orchestrator drives.
type Backend interface {
	CheckUser(ctx context.Context, authID string) (bool, error)
	RegistrationOptions(ctx context.Context, username string) (*protocol.CredentialCreation, error)
	RegistrationOptionsUsernameless(ctx context.Context) (*protocol.CredentialCreation, error)
	VerifyRegistration(ctx context.Context, attestation json.RawMessage, username string) (api.VerificationResult, error)
	AuthenticationOptions(ctx context.Context, authID string) (*protocol.CredentialAssertion, error)
	AuthenticationOptionsUsernameless(ctx context.Context) (*protocol.CredentialAssertion, error)
	VerifyAuthentication(ctx context.Context, assertion json.RawMessage, username string) (api.VerificationResult, error)
	VerifyAuthenticationUsernameless(ctx context.Context, assertion json.RawMessage) (api.VerificationResult, error)
}

// HintCache is the slice of the hint cache the orchestrator touches.
type HintCache interface {
	MostRecent(ctx context.Context) (hint.WalletHint, bool)
	Save(ctx context.Context, authenticatorID, walletAddress string) error
}

// Outcome is the result of one ceremony attempt. Message is displayable;
// Err carries the widget error code for callers that branch on it.
type Outcome struct {
	Route   Route
	User    session.User
	Err     error
	Message string
}

// Orchestrator sequences ceremony steps and owns the in-flight guard. A new
// ceremony start is rejected while one is pending for the same session,
// rather than relying on the UI disabling its trigger.
type Orchestrator struct {
	session  *session.Session
	hints    HintCache
	backend  Backend
	platform authenticator.Authenticator
	tracer   trace.Tracer

	mu    sync.Mutex
	state State
	busy  bool
}

// New wires an orchestrator over one widget session.
func New(sess *session.Session, hints HintCache, backend Backend, platform authenticator.Authenticator) *Orchestrator {
	return &Orchestrator{
		session:  sess,
		hints:    hints,
		backend:  backend,
		platform: platform,
		tracer:   otel.Tracer("widget/flow"),
		state:    StateIdle,
	}
}

// State reports the current ceremony state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether a ceremony attempt is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// StartEarning runs the identified flow: a returning authenticator signs
// in, everyone else registers under the supplied username.
func (o *Orchestrator) StartEarning(ctx context.Context, username string) Outcome {
	return o.run(ctx, "start_earning", func(ctx context.Context) (Route, error) {
		o.session.SetUser(session.User{Username: username})

		record, ok := o.hints.MostRecent(ctx)
		registered := false
		if ok {
			var err error
			registered, err = o.backend.CheckUser(ctx, record.AuthenticatorID)
			if err != nil {
				return "", err
			}
		}

		if registered {
			return o.authenticate(ctx, record.AuthenticatorID, username)
		}
		return o.registerIdentified(ctx, username)
	})
}

// Authenticate runs the usernameless flow: hint-directed sign-in when a
// local hint exists, otherwise conditional discoverable-credential sign-in,
// falling through to usernameless registration when the backend reports no
// matching credential.
func (o *Orchestrator) Authenticate(ctx context.Context) Outcome {
	return o.run(ctx, "authenticate", func(ctx context.Context) (Route, error) {
		o.session.SetUser(session.User{})

		if record, ok := o.hints.MostRecent(ctx); ok {
			return o.authenticate(ctx, record.AuthenticatorID, "")
		}

		o.setState(StateFetchingOptions)
		options, err := o.backend.AuthenticationOptionsUsernameless(ctx)
		if err != nil {
			return "", err
		}

		o.setState(StateAwaitingAuthenticator)
		assertion, err := o.platform.Get(ctx, options, true)
		if err != nil {
			return "", err
		}

		o.setState(StateVerifying)
		result, err := o.backend.VerifyAuthenticationUsernameless(ctx, assertion)
		if err != nil {
			return "", err
		}
		if result.Code == http.StatusNotFound {
			return o.registerUsernameless(ctx)
		}
		if !result.Verified {
			return "", widgeterrors.New(widgeterrors.CodeVerificationFailed, "authentication error")
		}

		o.session.SetUser(result.User)
		o.rememberCredential(ctx, assertion, result.User.WalletAddress)
		return o.route()
	})
}

// Register runs the usernameless registration ceremony directly.
func (o *Orchestrator) Register(ctx context.Context) Outcome {
	return o.run(ctx, "register", func(ctx context.Context) (Route, error) {
		o.session.SetUser(session.User{})
		return o.registerUsernameless(ctx)
	})
}

// authenticate performs an identified authentication ceremony using authID
// as the identity hint. username may be empty on the hint-directed path;
// the backend then resolves identity from the credential.
func (o *Orchestrator) authenticate(ctx context.Context, authID, username string) (Route, error) {
	o.setState(StateFetchingOptions)
	options, err := o.backend.AuthenticationOptions(ctx, authID)
	if err != nil {
		return "", err
	}

	o.setState(StateAwaitingAuthenticator)
	assertion, err := o.platform.Get(ctx, options, false)
	if err != nil {
		return "", err
	}

	o.setState(StateVerifying)
	result, err := o.backend.VerifyAuthentication(ctx, assertion, username)
	if err != nil {
		return "", err
	}
	if !result.Verified {
		return "", widgeterrors.New(widgeterrors.CodeVerificationFailed, "authentication error")
	}

	o.session.SetUser(result.User)
	// Bump the hint so its usage count and recency track the sign-in. Best
	// effort: the server already verified the visitor, so a failed write
	// only costs the fast path next time.
	_ = o.hints.Save(ctx, authID, result.User.WalletAddress)
	return o.route()
}

func (o *Orchestrator) registerIdentified(ctx context.Context, username string) (Route, error) {
	o.setState(StateFetchingOptions)
	options, err := o.backend.RegistrationOptions(ctx, username)
	if err != nil {
		return "", err
	}
	return o.finishRegistration(ctx, options, username)
}

func (o *Orchestrator) registerUsernameless(ctx context.Context) (Route, error) {
	o.setState(StateFetchingOptions)
	options, err := o.backend.RegistrationOptionsUsernameless(ctx)
	if err != nil {
		return "", err
	}
	return o.finishRegistration(ctx, options, "")
}

func (o *Orchestrator) finishRegistration(ctx context.Context, options *protocol.CredentialCreation, username string) (Route, error) {
	o.setState(StateAwaitingAuthenticator)
	attestation, err := o.platform.Create(ctx, options)
	if err != nil {
		return "", err
	}

	o.setState(StateVerifying)
	result, err := o.backend.VerifyRegistration(ctx, attestation, username)
	if err != nil {
		return "", err
	}
	if !result.Verified {
		return "", widgeterrors.New(widgeterrors.CodeVerificationFailed, "registration failed")
	}

	o.session.SetUser(result.User)

	// Persist the hint keyed by the new credential's id. This is the one
	// store write the flow does not absorb: a visitor who registered but
	// whose hint cannot be written should see the failure.
	credentialID, err := authenticator.CredentialID(attestation)
	if err != nil {
		return "", widgeterrors.Wrap(widgeterrors.CodeStorage, "read credential id", err)
	}
	if err := o.hints.Save(ctx, credentialID, result.User.WalletAddress); err != nil {
		return "", err
	}
	return o.route()
}

// rememberCredential refreshes the hint for a credential observed during a
// verified usernameless sign-in. Best effort: the session is already
// authenticated, so a failed write only costs the fast path next time.
func (o *Orchestrator) rememberCredential(ctx context.Context, assertion json.RawMessage, walletAddress string) {
	credentialID, err := authenticator.CredentialID(assertion)
	if err != nil || walletAddress == "" {
		return
	}
	_ = o.hints.Save(ctx, credentialID, walletAddress)
}

// route decides the page after a verified ceremony: a visitor carrying
// someone else's referral code goes to the reward page, everyone else to
// the share page.
func (o *Orchestrator) route() (Route, error) {
	view, err := o.session.Snapshot()
	if err != nil {
		return "", err
	}
	if view.RefCode != "" && view.RefCode != view.OwnerRefCode {
		return RouteReward, nil
	}
	return RouteShare, nil
}

// run is the error boundary shared by every entry point. It enforces the
// in-flight guard, checks platform capability before any network call, maps
// boundary errors onto the widget taxonomy, and always clears the busy flag.
func (o *Orchestrator) run(ctx context.Context, name string, fn func(context.Context) (Route, error)) Outcome {
	if err := o.begin(); err != nil {
		return Outcome{Err: err, Message: widgeterrors.MessageOf(err)}
	}
	defer o.end()

	ctx, span := o.tracer.Start(ctx, "flow."+name)
	defer span.End()
	if view, err := o.session.Snapshot(); err == nil {
		span.SetAttributes(attribute.String("widget.session_id", view.SessionID))
	}

	if !o.platform.Available() {
		err := widgeterrors.New(widgeterrors.CodeCapability, "WebAuthn is not supported by this browser.")
		o.setState(StateFailed)
		return Outcome{Err: err, Message: err.Message}
	}

	route, err := fn(ctx)
	if err != nil {
		mapped := mapCeremonyError(err)
		span.RecordError(mapped)
		o.setState(StateFailed)
		return Outcome{Err: mapped, Message: widgeterrors.MessageOf(mapped)}
	}

	o.setState(StateSucceeded)
	outcome := Outcome{Route: route}
	if view, viewErr := o.session.Snapshot(); viewErr == nil {
		outcome.User = session.User{
			Username:      view.Username,
			WalletAddress: view.WalletAddress,
			ReferralCode:  view.OwnerRefCode,
		}
	}
	return outcome
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return widgeterrors.New(widgeterrors.CodeCeremonyInFlight, "a passkey ceremony is already in progress")
	}
	o.busy = true
	o.state = StateIdle
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
}

// mapCeremonyError folds authenticator sentinels onto the widget taxonomy.
// Errors already carrying a widget code pass through untouched.
func mapCeremonyError(err error) error {
	switch {
	case errors.Is(err, authenticator.ErrAlreadyRegistered):
		return widgeterrors.Wrap(widgeterrors.CodeCeremonyAborted, "Authenticator was probably already registered by user", err)
	case errors.Is(err, authenticator.ErrAborted):
		return widgeterrors.Wrap(widgeterrors.CodeCeremonyAborted, "Passkey prompt was cancelled", err)
	case errors.Is(err, authenticator.ErrUnsupported):
		return widgeterrors.Wrap(widgeterrors.CodeCapability, "WebAuthn is not supported by this browser.", err)
	default:
		return err
	}
}
