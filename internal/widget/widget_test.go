package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
	"github.com/shopembed/referral-widget/internal/hint"
	"github.com/shopembed/referral-widget/internal/widget/session"
)

type stubPlatform struct{}

func (stubPlatform) Available() bool { return true }

func (stubPlatform) Create(context.Context, *protocol.CredentialCreation) (json.RawMessage, error) {
	return nil, nil
}

func (stubPlatform) Get(context.Context, *protocol.CredentialAssertion, bool) (json.RawMessage, error) {
	return nil, nil
}

type stubHints struct {
	record  hint.WalletHint
	present bool
}

func (h *stubHints) MostRecent(context.Context) (hint.WalletHint, bool) {
	return h.record, h.present
}

func (h *stubHints) Save(context.Context, string, string) error { return nil }

func knownHints() *stubHints {
	return &stubHints{record: hint.WalletHint{AuthenticatorID: "auth-1", WalletAddress: "0xabc"}, present: true}
}

func TestOpenResetsSessionAndPage(t *testing.T) {
	w := New(Options{APIURL: "https://backend.example", RefCode: "R2"}, knownHints(), stubPlatform{})

	w.Open(context.Background())
	w.Navigate(PageDashboard)
	w.Session().SetUser(session.User{Username: "u1", WalletAddress: "0xabc"})

	w.Open(context.Background())
	if w.Page() != PageAuth {
		t.Fatalf("expected auth page after reopen, got %s", w.Page())
	}
	view, err := w.Session().Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.Username != "" || view.WalletAddress != "" {
		t.Fatalf("expected user cleared on reopen, got %+v", view)
	}
	if view.RefCode != "R2" {
		t.Fatalf("expected ref code retained, got %q", view.RefCode)
	}
}

func TestCloseNotifiesHost(t *testing.T) {
	closed := false
	w := New(Options{APIURL: "https://backend.example", OnClose: func() { closed = true }}, knownHints(), stubPlatform{})

	w.Open(context.Background())
	w.Close()

	if w.IsOpen() {
		t.Fatal("expected widget closed")
	}
	if !closed {
		t.Fatal("expected OnClose callback")
	}
}

func TestOperationsBeforeOpenFail(t *testing.T) {
	w := New(Options{APIURL: "https://backend.example", RefCode: "R2"}, knownHints(), stubPlatform{})

	if _, err := w.ClaimReferral(context.Background()); widgeterrors.CodeOf(err) != widgeterrors.CodeConfigurationMissing {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := w.DashboardInfo(context.Background()); widgeterrors.CodeOf(err) != widgeterrors.CodeConfigurationMissing {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClaimReferralRegistersEvent(t *testing.T) {
	var gotEvent map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/referral/check":
			_ = json.NewEncoder(w).Encode(map[string]any{"registered": false})
		case "/api/referral/event":
			_ = json.NewDecoder(r.Body).Decode(&gotEvent)
			_ = json.NewEncoder(w).Encode(map[string]any{"registered": true, "status": "pending"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	w := New(Options{
		APIURL:  server.URL,
		RefCode: "R2",
		Brand:   "acme",
		Product: &session.ProductInfo{ID: "p1", Name: "Sneaker"},
	}, knownHints(), stubPlatform{})
	w.Open(context.Background())

	status, err := w.ClaimReferral(context.Background())
	if err != nil {
		t.Fatalf("claim referral: %v", err)
	}
	if !status.Registered || status.Status != "pending" {
		t.Fatalf("unexpected status %+v", status)
	}
	if gotEvent["refCode"] != "R2" || gotEvent["referee"] != "auth-1" || gotEvent["brand"] != "acme" || gotEvent["product"] != "Sneaker" {
		t.Fatalf("unexpected event %v", gotEvent)
	}
	if w.Page() != PageClaim {
		t.Fatalf("expected claim page, got %s", w.Page())
	}
}

func TestClaimReferralSkipsDuplicate(t *testing.T) {
	registerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/referral/check":
			_ = json.NewEncoder(w).Encode(map[string]any{"registered": true, "status": "paid"})
		case "/api/referral/event":
			registerCalls++
			http.Error(w, "duplicate", http.StatusConflict)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	w := New(Options{APIURL: server.URL, RefCode: "R2", Brand: "acme"}, knownHints(), stubPlatform{})
	w.Open(context.Background())

	status, err := w.ClaimReferral(context.Background())
	if err != nil {
		t.Fatalf("claim referral: %v", err)
	}
	if !status.Registered || status.Status != "paid" {
		t.Fatalf("unexpected status %+v", status)
	}
	if registerCalls != 0 {
		t.Fatal("expected no event registration for an existing referral")
	}
}

func TestClaimReferralRequiresRefCode(t *testing.T) {
	w := New(Options{APIURL: "https://backend.example"}, knownHints(), stubPlatform{})
	w.Open(context.Background())

	_, err := w.ClaimReferral(context.Background())
	if widgeterrors.CodeOf(err) != widgeterrors.CodeConfigurationMissing {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClaimReferralRequiresKnownPasskey(t *testing.T) {
	w := New(Options{APIURL: "https://backend.example", RefCode: "R2"}, &stubHints{}, stubPlatform{})
	w.Open(context.Background())

	_, err := w.ClaimReferral(context.Background())
	if widgeterrors.CodeOf(err) != widgeterrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDashboardInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["authId"] != "auth-1" || body["brand"] != "acme" {
			t.Errorf("unexpected dashboard request %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"balance": 12.5,
			"earned":  40.0,
			"activities": []map[string]string{
				{"type": "referral", "amount": "12.5", "product": "Sneaker", "date": "2026-08-01"},
			},
		})
	}))
	t.Cleanup(server.Close)

	w := New(Options{APIURL: server.URL, Brand: "acme"}, knownHints(), stubPlatform{})
	w.Open(context.Background())

	dashboard, err := w.DashboardInfo(context.Background())
	if err != nil {
		t.Fatalf("dashboard info: %v", err)
	}
	if dashboard.Balance != 12.5 || len(dashboard.Activities) != 1 {
		t.Fatalf("unexpected dashboard %+v", dashboard)
	}
	if w.Page() != PageDashboard {
		t.Fatalf("expected dashboard page, got %s", w.Page())
	}
}

func TestActivityLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/referral/user/auth-1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"refCode": "R2", "brand": "acme", "status": "paid", "createdAt": "2026-08-01"},
		})
	}))
	t.Cleanup(server.Close)

	w := New(Options{APIURL: server.URL, Brand: "acme"}, knownHints(), stubPlatform{})
	w.Open(context.Background())

	records, err := w.ActivityLog(context.Background())
	if err != nil {
		t.Fatalf("activity log: %v", err)
	}
	if len(records) != 1 || records[0].RefCode != "R2" {
		t.Fatalf("unexpected records %+v", records)
	}
	if w.Page() != PageActivity {
		t.Fatalf("expected activity page, got %s", w.Page())
	}
}
