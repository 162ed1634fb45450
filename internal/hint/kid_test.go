package hint

import (
	"encoding/base64"
	"testing"
)

func TestComputeKidDeterministic(t *testing.T) {
	credentialID := base64.RawURLEncoding.EncodeToString([]byte("credential-one"))

	first, err := ComputeKid(credentialID)
	if err != nil {
		t.Fatalf("compute kid: %v", err)
	}
	second, err := ComputeKid(credentialID)
	if err != nil {
		t.Fatalf("compute kid: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable kid, got %q and %q", first, second)
	}
	if first == "" {
		t.Fatal("expected non-empty kid")
	}
	if _, err := base64.RawURLEncoding.DecodeString(first); err != nil {
		t.Fatalf("expected base64url kid: %v", err)
	}
}

func TestComputeKidDistinctInputs(t *testing.T) {
	inputs := []string{"alpha", "beta", "gamma", "alpha2", "Alpha"}
	seen := make(map[string]string)
	for _, input := range inputs {
		encoded := base64.RawURLEncoding.EncodeToString([]byte(input))
		kid, err := ComputeKid(encoded)
		if err != nil {
			t.Fatalf("compute kid for %q: %v", input, err)
		}
		if prior, ok := seen[kid]; ok {
			t.Fatalf("kid collision between %q and %q", prior, input)
		}
		seen[kid] = input
	}
}

func TestComputeKidAcceptsPaddedInput(t *testing.T) {
	unpadded := base64.RawURLEncoding.EncodeToString([]byte("padme"))
	padded := base64.URLEncoding.EncodeToString([]byte("padme"))

	fromUnpadded, err := ComputeKid(unpadded)
	if err != nil {
		t.Fatalf("compute kid unpadded: %v", err)
	}
	fromPadded, err := ComputeKid(padded)
	if err != nil {
		t.Fatalf("compute kid padded: %v", err)
	}
	if fromUnpadded != fromPadded {
		t.Fatalf("expected identical kids, got %q and %q", fromUnpadded, fromPadded)
	}
}

func TestComputeKidRejectsInvalidEncoding(t *testing.T) {
	if _, err := ComputeKid("not/base64url!"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
}
