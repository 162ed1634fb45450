// Package errors provides structured error handling for the widget.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ceremony errors
	CodeCapability         Code = "WEBAUTHN_UNSUPPORTED"
	CodeCeremonyAborted    Code = "CEREMONY_ABORTED"
	CodeCeremonyInFlight   Code = "CEREMONY_IN_FLIGHT"
	CodeVerificationFailed Code = "VERIFICATION_FAILED"

	// Transport errors
	CodeNetwork Code = "NETWORK_ERROR"

	// Session errors
	CodeConfigurationMissing Code = "CONFIGURATION_MISSING"

	// Storage errors
	CodeStorage  Code = "STORAGE_ERROR"
	CodeNotFound Code = "NOT_FOUND"
)
