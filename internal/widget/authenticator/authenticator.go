// Package authenticator is the boundary to the platform authenticator that
// owns the WebAuthn cryptography. Implementations translate whatever the
// host platform reports into a closed set of tagged errors, so downstream
// logic never inspects loosely-typed error identifiers.
package authenticator

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
)

var (
	// ErrAborted reports that the user dismissed or the platform cancelled
	// the ceremony (NotAllowedError and friends).
	ErrAborted = errors.New("ceremony aborted")

	// ErrAlreadyRegistered reports that the authenticator refused to create
	// a credential it already holds (InvalidStateError).
	ErrAlreadyRegistered = errors.New("authenticator already registered")

	// ErrUnsupported reports that the platform has no WebAuthn support.
	ErrUnsupported = errors.New("webauthn is not supported")
)

// Authenticator invokes the platform's WebAuthn ceremonies. The returned
// JSON is the platform's credential response, forwarded verbatim to the
// backend verify endpoints.
type Authenticator interface {
	// Available reports whether the platform supports WebAuthn at all.
	Available() bool

	// Create runs a registration ceremony for the given creation options.
	Create(ctx context.Context, options *protocol.CredentialCreation) (json.RawMessage, error)

	// Get runs an authentication ceremony for the given request options.
	// When conditional is set the platform may present a passive account
	// picker instead of an active prompt.
	Get(ctx context.Context, options *protocol.CredentialAssertion, conditional bool) (json.RawMessage, error)
}

// CredentialID extracts the base64url credential id from a ceremony
// response.
func CredentialID(response json.RawMessage) (string, error) {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(response, &envelope); err != nil {
		return "", err
	}
	if envelope.ID == "" {
		return "", errors.New("credential response has no id")
	}
	return envelope.ID, nil
}
