package api

import (
	"context"
	"net/url"
)

// Dashboard summarizes the visitor's referral earnings.
type Dashboard struct {
	Balance    float64    `json:"balance"`
	Earned     float64    `json:"earned"`
	Activities []Activity `json:"activities"`
}

// Activity is one dashboard line item.
type Activity struct {
	Type    string `json:"type"`
	Amount  string `json:"amount"`
	Product string `json:"product"`
	Date    string `json:"date"`
}

// ReferralEvent describes a referral registration or check request.
type ReferralEvent struct {
	RefCode string `json:"refCode"`
	Referee string `json:"referee"`
	Brand   string `json:"brand"`
	Product string `json:"product"`
}

// ReferralStatus is the backend's answer to an event or check call.
type ReferralStatus struct {
	Registered bool   `json:"registered"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ReferralRecord is one entry of a referee's referral history.
type ReferralRecord struct {
	RefCode   string `json:"refCode"`
	Brand     string `json:"brand"`
	Product   string `json:"product"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// FetchDashboard fetches dashboard info for an authenticator id.
func (c *Client) FetchDashboard(ctx context.Context, authID, brand string) (Dashboard, error) {
	var dashboard Dashboard
	body := map[string]string{"authId": authID, "brand": brand}
	if err := c.post(ctx, "/api/dashboard", body, &dashboard); err != nil {
		return Dashboard{}, err
	}
	return dashboard, nil
}

// RegisterReferral records a referral event for the selected product.
func (c *Client) RegisterReferral(ctx context.Context, event ReferralEvent) (ReferralStatus, error) {
	var status ReferralStatus
	if err := c.post(ctx, "/api/referral/event", event, &status); err != nil {
		return ReferralStatus{}, err
	}
	return status, nil
}

// CheckReferral asks whether a referral was already registered for the
// referee and product.
func (c *Client) CheckReferral(ctx context.Context, event ReferralEvent) (ReferralStatus, error) {
	var status ReferralStatus
	if err := c.post(ctx, "/api/referral/check", event, &status); err != nil {
		return ReferralStatus{}, err
	}
	return status, nil
}

// ReferralHistory lists the referral events recorded for a referee.
func (c *Client) ReferralHistory(ctx context.Context, authID string) ([]ReferralRecord, error) {
	var records []ReferralRecord
	if err := c.get(ctx, "/api/referral/user/"+url.PathEscape(authID), &records); err != nil {
		return nil, err
	}
	return records, nil
}
