// Package session holds the single source of truth for one widget session.
//
// The session is created at widget mount and passed explicitly to every
// component; there is no module-level state. A mutex guards the fields
// because hosts may touch the session from more than one goroutine.
package session

import (
	"strings"
	"sync"

	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
	"github.com/shopembed/referral-widget/internal/platform/id"
)

// ProductInfo is the minimal product data required by the widget.
type ProductInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Description string  `json:"description,omitempty"`
}

// User identifies the authenticated visitor after a verified ceremony.
type User struct {
	Username      string `json:"username"`
	WalletAddress string `json:"walletAddress"`
	ReferralCode  string `json:"referralCode"`
}

// Settings are the immutable-per-open fields supplied at widget open.
type Settings struct {
	SiteURL string
	APIURL  string
	RefCode string
	Brand   string
	Product *ProductInfo
}

// View is a read snapshot of the session.
//
// OwnerRefCode is the authenticated user's own referral code, distinct from
// RefCode, the code the visitor arrived with. Callers compare the two to
// detect self-referral.
type View struct {
	SessionID     string
	SiteURL       string
	APIURL        string
	RefCode       string
	Username      string
	WalletAddress string
	OwnerRefCode  string
	Brand         string
	Product       *ProductInfo
}

// Session is one widget session's mutable state.
type Session struct {
	mu          sync.Mutex
	id          string
	settings    Settings
	user        User
	initialized bool
}

// New returns an uninitialized session.
func New() *Session {
	return &Session{}
}

// Initialize installs the per-open settings, overwriting any prior session
// state including the authenticated user. Re-opening the widget resets it.
func (s *Session) Initialize(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The session id only labels telemetry, so a failed draw degrades to an
	// empty label rather than failing the open.
	s.id, _ = id.NewID()
	s.settings = settings
	s.user = User{}
	s.initialized = strings.TrimSpace(settings.APIURL) != ""
}

// SetUser records the authenticated user after a verified ceremony.
func (s *Session) SetUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// Snapshot returns a read view of the session. It fails when the session was
// never initialized with an API URL.
func (s *Session) Snapshot() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return View{}, widgeterrors.New(widgeterrors.CodeConfigurationMissing, "widget config not set")
	}
	return View{
		SessionID:     s.id,
		SiteURL:       s.settings.SiteURL,
		APIURL:        s.settings.APIURL,
		RefCode:       s.settings.RefCode,
		Username:      s.user.Username,
		WalletAddress: s.user.WalletAddress,
		OwnerRefCode:  s.user.ReferralCode,
		Brand:         s.settings.Brand,
		Product:       s.settings.Product,
	}, nil
}
