package session

import (
	"testing"

	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
)

func TestSnapshotBeforeInitializeFails(t *testing.T) {
	s := New()

	_, err := s.Snapshot()
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if widgeterrors.CodeOf(err) != widgeterrors.CodeConfigurationMissing {
		t.Fatalf("expected %s, got %s", widgeterrors.CodeConfigurationMissing, widgeterrors.CodeOf(err))
	}
}

func TestSnapshotAfterInitialize(t *testing.T) {
	s := New()
	s.Initialize(Settings{
		SiteURL: "https://shop.example",
		APIURL:  "https://x",
		RefCode: "R2",
		Brand:   "acme",
		Product: &ProductInfo{ID: "p1", Name: "Widgetizer"},
	})

	view, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.APIURL != "https://x" {
		t.Fatalf("expected api url to round-trip, got %q", view.APIURL)
	}
	if view.RefCode != "R2" {
		t.Fatalf("expected ref code R2, got %q", view.RefCode)
	}
	if view.Product == nil || view.Product.Name != "Widgetizer" {
		t.Fatalf("expected product to round-trip, got %+v", view.Product)
	}
	if view.OwnerRefCode != "" {
		t.Fatalf("expected empty owner ref code before auth, got %q", view.OwnerRefCode)
	}
}

func TestInitializeWithoutAPIURLStaysUninitialized(t *testing.T) {
	s := New()
	s.Initialize(Settings{SiteURL: "https://shop.example"})

	if _, err := s.Snapshot(); err == nil {
		t.Fatal("expected configuration error without api url")
	}
}

func TestSetUserExposesOwnerRefCode(t *testing.T) {
	s := New()
	s.Initialize(Settings{APIURL: "https://x", RefCode: "R2"})
	s.SetUser(User{Username: "u1", WalletAddress: "0xabc", ReferralCode: "R1"})

	view, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.OwnerRefCode != "R1" {
		t.Fatalf("expected owner ref code R1, got %q", view.OwnerRefCode)
	}
	if view.RefCode != "R2" {
		t.Fatalf("expected inbound ref code R2, got %q", view.RefCode)
	}
	if view.WalletAddress != "0xabc" {
		t.Fatalf("expected wallet address to round-trip, got %q", view.WalletAddress)
	}
}

func TestInitializeMintsFreshSessionID(t *testing.T) {
	s := New()
	s.Initialize(Settings{APIURL: "https://x"})

	first, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(first.SessionID) != 26 {
		t.Fatalf("expected 26-character session id, got %q", first.SessionID)
	}

	s.Initialize(Settings{APIURL: "https://x"})
	second, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("expected a new session id per open")
	}
}

func TestReinitializeResetsUser(t *testing.T) {
	s := New()
	s.Initialize(Settings{APIURL: "https://x"})
	s.SetUser(User{Username: "u1", ReferralCode: "R1"})

	s.Initialize(Settings{APIURL: "https://x"})
	view, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.Username != "" || view.OwnerRefCode != "" {
		t.Fatalf("expected user reset on re-open, got %+v", view)
	}
}
