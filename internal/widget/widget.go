// Package widget is the embeddable referral widget: it owns the page flow
// and exposes the operations a host storefront calls. Everything hangs off
// one Widget value; mounting two widgets on a page gives two independent
// sessions.
package widget

import (
	"context"
	"sync"

	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
	"github.com/shopembed/referral-widget/internal/widget/api"
	"github.com/shopembed/referral-widget/internal/widget/authenticator"
	"github.com/shopembed/referral-widget/internal/widget/flow"
	"github.com/shopembed/referral-widget/internal/widget/session"
)

// Page names one screen of the widget.
type Page string

const (
	PageAuth      Page = "auth"
	PageReward    Page = "reward"
	PageShare     Page = "share"
	PageDashboard Page = "dashboard"
	PageActivity  Page = "activity"
	PageClaim     Page = "claim"
)

// Options configure a widget instance. APIURL is required; the rest shape
// the referral context the ceremonies and claims run in.
type Options struct {
	SiteURL string
	APIURL  string
	RefCode string
	Brand   string
	Product *session.ProductInfo

	// OnClose, when set, is invoked after Close tears the session down.
	OnClose func()
}

// Widget drives one embedded referral widget.
type Widget struct {
	options  Options
	session  *session.Session
	hints    flow.HintCache
	client   *api.Client
	flow     *flow.Orchestrator
	platform authenticator.Authenticator

	mu   sync.Mutex
	page Page
	open bool
}

// New builds a widget over the given hint cache and platform authenticator.
// Nothing touches the network until an operation runs.
func New(options Options, hints flow.HintCache, platform authenticator.Authenticator) *Widget {
	sess := session.New()
	client := api.New(options.APIURL)
	return &Widget{
		options:  options,
		session:  sess,
		hints:    hints,
		client:   client,
		flow:     flow.New(sess, hints, client, platform),
		platform: platform,
		page:     PageAuth,
	}
}

// Open initializes the session from the widget options and resets the flow
// to the auth page. Re-opening discards any previously authenticated user.
func (w *Widget) Open(_ context.Context) {
	w.session.Initialize(session.Settings{
		SiteURL: w.options.SiteURL,
		APIURL:  w.options.APIURL,
		RefCode: w.options.RefCode,
		Brand:   w.options.Brand,
		Product: w.options.Product,
	})
	w.mu.Lock()
	w.page = PageAuth
	w.open = true
	w.mu.Unlock()
}

// Close marks the widget closed and notifies the host.
func (w *Widget) Close() {
	w.mu.Lock()
	w.open = false
	w.mu.Unlock()
	if w.options.OnClose != nil {
		w.options.OnClose()
	}
}

// IsOpen reports whether the widget is currently open.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Page reports the current page.
func (w *Widget) Page() Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.page
}

// Navigate moves to the given page without side effects.
func (w *Widget) Navigate(page Page) {
	w.mu.Lock()
	w.page = page
	w.mu.Unlock()
}

// Session exposes the widget's session for hosts that render from it.
func (w *Widget) Session() *session.Session {
	return w.session
}

// Authenticate runs the usernameless sign-in flow and lands on the page its
// outcome routes to.
func (w *Widget) Authenticate(ctx context.Context) flow.Outcome {
	outcome := w.flow.Authenticate(ctx)
	w.applyRoute(outcome)
	return outcome
}

// StartEarning runs the identified flow for the given username.
func (w *Widget) StartEarning(ctx context.Context, username string) flow.Outcome {
	outcome := w.flow.StartEarning(ctx, username)
	w.applyRoute(outcome)
	return outcome
}

// Register runs the usernameless registration flow.
func (w *Widget) Register(ctx context.Context) flow.Outcome {
	outcome := w.flow.Register(ctx)
	w.applyRoute(outcome)
	return outcome
}

func (w *Widget) applyRoute(outcome flow.Outcome) {
	if outcome.Err != nil {
		return
	}
	switch outcome.Route {
	case flow.RouteReward:
		w.Navigate(PageReward)
	case flow.RouteShare:
		w.Navigate(PageShare)
	}
}

// ClaimReferral records the inbound referral for the current visitor. It
// checks for a duplicate first so a re-opened widget does not double-claim.
func (w *Widget) ClaimReferral(ctx context.Context) (api.ReferralStatus, error) {
	view, err := w.session.Snapshot()
	if err != nil {
		return api.ReferralStatus{}, err
	}
	if view.RefCode == "" {
		return api.ReferralStatus{}, widgeterrors.New(widgeterrors.CodeConfigurationMissing, "no referral code to claim")
	}
	referee, err := w.authenticatorID(ctx)
	if err != nil {
		return api.ReferralStatus{}, err
	}

	event := api.ReferralEvent{
		RefCode: view.RefCode,
		Referee: referee,
		Brand:   view.Brand,
		Product: productName(view.Product),
	}
	existing, err := w.client.CheckReferral(ctx, event)
	if err != nil {
		return api.ReferralStatus{}, err
	}
	if existing.Registered {
		return existing, nil
	}

	status, err := w.client.RegisterReferral(ctx, event)
	if err != nil {
		return api.ReferralStatus{}, err
	}
	w.Navigate(PageClaim)
	return status, nil
}

// DashboardInfo fetches the visitor's earnings summary and shows the
// dashboard page.
func (w *Widget) DashboardInfo(ctx context.Context) (api.Dashboard, error) {
	view, err := w.session.Snapshot()
	if err != nil {
		return api.Dashboard{}, err
	}
	authID, err := w.authenticatorID(ctx)
	if err != nil {
		return api.Dashboard{}, err
	}
	dashboard, err := w.client.FetchDashboard(ctx, authID, view.Brand)
	if err != nil {
		return api.Dashboard{}, err
	}
	w.Navigate(PageDashboard)
	return dashboard, nil
}

// ActivityLog fetches the visitor's referral history and shows the activity
// page.
func (w *Widget) ActivityLog(ctx context.Context) ([]api.ReferralRecord, error) {
	if _, err := w.session.Snapshot(); err != nil {
		return nil, err
	}
	authID, err := w.authenticatorID(ctx)
	if err != nil {
		return nil, err
	}
	records, err := w.client.ReferralHistory(ctx, authID)
	if err != nil {
		return nil, err
	}
	w.Navigate(PageActivity)
	return records, nil
}

// authenticatorID resolves the visitor identity from the freshest hint.
func (w *Widget) authenticatorID(ctx context.Context) (string, error) {
	record, ok := w.hints.MostRecent(ctx)
	if !ok {
		return "", widgeterrors.New(widgeterrors.CodeNotFound, "no passkey is known on this device")
	}
	return record.AuthenticatorID, nil
}

func productName(product *session.ProductInfo) string {
	if product == nil {
		return ""
	}
	if product.Name != "" {
		return product.Name
	}
	return product.ID
}
