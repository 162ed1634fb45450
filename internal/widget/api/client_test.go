package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, WithHTTPClient(server.Client()))
}

func TestCheckUser(t *testing.T) {
	var gotBody map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/check-user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]bool{"registered": true})
	}))

	registered, err := client.CheckUser(context.Background(), "auth-1")
	if err != nil {
		t.Fatalf("check user: %v", err)
	}
	if !registered {
		t.Fatal("expected registered true")
	}
	if gotBody["authId"] != "auth-1" {
		t.Fatalf("expected authId in body, got %v", gotBody)
	}
}

func TestNetworkErrorCarriesBodyText(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	_, err := client.CheckUser(context.Background(), "auth-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if widgeterrors.CodeOf(err) != widgeterrors.CodeNetwork {
		t.Fatalf("expected network code, got %s", widgeterrors.CodeOf(err))
	}
	if widgeterrors.MessageOf(err) != "rate limited" {
		t.Fatalf("expected body text as message, got %q", widgeterrors.MessageOf(err))
	}
}

func TestNetworkErrorWithoutBodyUsesStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.CheckUser(context.Background(), "auth-1")
	if err == nil {
		t.Fatal("expected error")
	}
	message := widgeterrors.MessageOf(err)
	if message == "" {
		t.Fatal("expected a non-empty fallback message")
	}
}

func TestUnreachableBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := New(server.URL)
	server.Close()

	_, err := client.CheckUser(context.Background(), "auth-1")
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if widgeterrors.CodeOf(err) != widgeterrors.CodeNetwork {
		t.Fatalf("expected network code, got %s", widgeterrors.CodeOf(err))
	}
}
