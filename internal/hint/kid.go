package hint

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// ComputeKid derives a stable key from a base64url credential id:
// base64url(SHA-256(credential id bytes)), unpadded.
//
// The ceremony flow keys hints by the server-issued authenticator id
// directly; ComputeKid gives commands and logs a label for a credential
// without exposing the raw id.
func ComputeKid(credentialID string) (string, error) {
	trimmed := strings.TrimRight(credentialID, "=")
	raw, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return "", fmt.Errorf("decode credential id: %w", err)
	}
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
