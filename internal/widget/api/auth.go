package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
	"github.com/shopembed/referral-widget/internal/widget/session"
)

// VerificationResult is the backend's verdict on a ceremony response.
// Code carries the HTTP status on the usernameless authentication path,
// where 404 distinguishes "no matching credential" from generic failure.
type VerificationResult struct {
	Verified bool         `json:"verified"`
	User     session.User `json:"user"`
	Code     int          `json:"-"`
}

// CheckUser reports whether the backend knows the given authenticator id.
func (c *Client) CheckUser(ctx context.Context, authID string) (bool, error) {
	var result struct {
		Registered bool `json:"registered"`
	}
	if err := c.post(ctx, "/api/auth/check-user", map[string]string{"authId": authID}, &result); err != nil {
		return false, err
	}
	return result.Registered, nil
}

// RegistrationOptions fetches creation options for an identified registration.
func (c *Client) RegistrationOptions(ctx context.Context, username string) (*protocol.CredentialCreation, error) {
	return c.registrationOptions(ctx, map[string]string{"username": username})
}

// RegistrationOptionsUsernameless fetches creation options with no
// identifier. The backend mints a server-side user handle and must require a
// resident key and user verification.
func (c *Client) RegistrationOptionsUsernameless(ctx context.Context) (*protocol.CredentialCreation, error) {
	return c.registrationOptions(ctx, map[string]string{})
}

func (c *Client) registrationOptions(ctx context.Context, body any) (*protocol.CredentialCreation, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/api/auth/generate-registration-options", body, &raw); err != nil {
		return nil, err
	}
	options, err := decodeCreationOptions(raw)
	if err != nil {
		return nil, widgeterrors.Wrap(widgeterrors.CodeNetwork, "decode registration options", err)
	}
	return options, nil
}

// VerifyRegistration submits an attestation response. An empty username is
// omitted so the backend resolves the minted user handle instead.
func (c *Client) VerifyRegistration(ctx context.Context, attestation json.RawMessage, username string) (VerificationResult, error) {
	var result VerificationResult
	if err := c.post(ctx, "/api/auth/verify-registration", verifyBody(attestation, username), &result); err != nil {
		return VerificationResult{}, err
	}
	return result, nil
}

// AuthenticationOptions fetches request options for an identified login.
func (c *Client) AuthenticationOptions(ctx context.Context, authID string) (*protocol.CredentialAssertion, error) {
	return c.authenticationOptions(ctx, map[string]string{"authId": authID})
}

// AuthenticationOptionsUsernameless fetches request options for a
// discoverable-credential login. The backend must return an empty allow-list
// and require user verification.
func (c *Client) AuthenticationOptionsUsernameless(ctx context.Context) (*protocol.CredentialAssertion, error) {
	return c.authenticationOptions(ctx, map[string]string{})
}

func (c *Client) authenticationOptions(ctx context.Context, body any) (*protocol.CredentialAssertion, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/api/auth/generate-authentication-options", body, &raw); err != nil {
		return nil, err
	}
	options, err := decodeRequestOptions(raw)
	if err != nil {
		return nil, widgeterrors.Wrap(widgeterrors.CodeNetwork, "decode authentication options", err)
	}
	return options, nil
}

// VerifyAuthentication submits an assertion response for an identified login.
func (c *Client) VerifyAuthentication(ctx context.Context, assertion json.RawMessage, username string) (VerificationResult, error) {
	var result VerificationResult
	if err := c.post(ctx, "/api/auth/verify-authentication", verifyBody(assertion, username), &result); err != nil {
		return VerificationResult{}, err
	}
	return result, nil
}

// VerifyAuthenticationUsernameless submits an assertion response with no
// username; the backend resolves identity from the credential id. A 404 is
// not an error: it reports "no matching credential" so the caller can fall
// through to registration.
func (c *Client) VerifyAuthenticationUsernameless(ctx context.Context, assertion json.RawMessage) (VerificationResult, error) {
	status, data, err := c.roundTrip(ctx, http.MethodPost, "/api/auth/verify-authentication", verifyBody(assertion, ""))
	if err != nil {
		return VerificationResult{}, err
	}
	if status == http.StatusNotFound {
		return VerificationResult{Code: status}, nil
	}
	if status < 200 || status >= 300 {
		return VerificationResult{}, networkError("/api/auth/verify-authentication", status, data)
	}

	var result VerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return VerificationResult{}, widgeterrors.Wrap(widgeterrors.CodeNetwork, "decode backend response", err)
	}
	result.Code = status
	return result, nil
}

func verifyBody(response json.RawMessage, username string) any {
	body := map[string]any{"attestationResponse": response}
	if username != "" {
		body["username"] = username
	}
	return body
}

// decodeCreationOptions accepts both the wrapped {"publicKey": …} form and
// bare creation-options JSON, since backends differ on which they emit.
func decodeCreationOptions(data []byte) (*protocol.CredentialCreation, error) {
	var wrapped protocol.CredentialCreation
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Response.Challenge) > 0 {
		return &wrapped, nil
	}
	var bare protocol.PublicKeyCredentialCreationOptions
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return &protocol.CredentialCreation{Response: bare}, nil
}

// decodeRequestOptions mirrors decodeCreationOptions for assertion options.
func decodeRequestOptions(data []byte) (*protocol.CredentialAssertion, error) {
	var wrapped protocol.CredentialAssertion
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Response.Challenge) > 0 {
		return &wrapped, nil
	}
	var bare protocol.PublicKeyCredentialRequestOptions
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return &protocol.CredentialAssertion{Response: bare}, nil
}
