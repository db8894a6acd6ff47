// Package email delivers loyalty notifications through the Postmark API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/punchcard/internal/loyalty"
	"github.com/dukerupert/punchcard/internal/model"
)

const (
	defaultEndpoint = "https://api.postmarkapp.com/email"
	messageStream   = "outbound"
)

// ErrNotConfigured is returned when no Postmark server token was supplied.
var ErrNotConfigured = errors.New("email: postmark token not set")

// APIError is a non-2xx reply from Postmark.
type APIError struct {
	Status  int
	Code    int    `json:"ErrorCode"`
	Message string `json:"Message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postmark: status %d", e.Status)
	}
	return fmt.Sprintf("postmark: status %d: code %d: %s", e.Status, e.Code, e.Message)
}

// Client sends welcome and receipt mail for restaurants.
type Client struct {
	token     string
	sender    string
	publicURL string
	endpoint  string
	hc        *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithEndpoint points the client at a different API URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// NewClient builds a client. publicURL is where customers reach their
// wallet and is used for links in message bodies.
func NewClient(token, sender, publicURL string, opts ...Option) *Client {
	c := &Client{
		token:     token,
		sender:    sender,
		publicURL: strings.TrimRight(publicURL, "/"),
		endpoint:  defaultEndpoint,
		hc:        &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether mail can be sent at all.
func (c *Client) Configured() bool {
	return c.token != ""
}

type message struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

func (c *Client) walletURL(r model.Restaurant) string {
	return c.publicURL + "/r/" + r.Slug + "/wallet"
}

// SendWelcome greets a new customer with their starting balance and tier.
func (c *Client) SendWelcome(ctx context.Context, r model.Restaurant, cust model.Customer) error {
	tier := loyalty.Classify(cust.LifetimePoints).Tier
	link := c.walletURL(r)

	return c.deliver(ctx, message{
		To:      cust.Email,
		Tag:     "welcome",
		Subject: "Welcome to " + r.Name + " rewards",
		TextBody: fmt.Sprintf("Hi %s,\n\nYou're now a %s member at %s with %d points.\n\nView your wallet: %s",
			cust.FirstName, tier, r.Name, cust.TotalPoints, link),
		HtmlBody: fmt.Sprintf(`<p>Hi %s,</p><p>You're now a <strong>%s</strong> member at %s with %d points.</p><p><a href="%s">View your wallet</a></p>`,
			html.EscapeString(cust.FirstName), tier, html.EscapeString(r.Name), cust.TotalPoints, html.EscapeString(link)),
	})
}

// SendRedemptionReceipt confirms a redemption. Staff honour the reward
// against the receipt reference. cust carries the balance from before
// the redemption.
func (c *Client) SendRedemptionReceipt(ctx context.Context, r model.Restaurant, cust model.Customer, reward model.Reward, entry model.Transaction) error {
	spent := -entry.Points
	left := cust.TotalPoints - spent

	return c.deliver(ctx, message{
		To:      cust.Email,
		Tag:     "redemption",
		Subject: fmt.Sprintf("Your %s reward: %s", r.Name, reward.Name),
		TextBody: fmt.Sprintf("Hi %s,\n\nYou redeemed %s for %d points.\nReceipt: %s\nRemaining balance: %d points.\n\nShow this receipt to staff to claim your reward.",
			cust.FirstName, reward.Name, spent, entry.Ref, left),
		HtmlBody: fmt.Sprintf(`<p>Hi %s,</p><p>You redeemed <strong>%s</strong> for %d points.</p><p>Receipt: <code>%s</code><br>Remaining balance: %d points.</p><p>Show this receipt to staff to claim your reward.</p>`,
			html.EscapeString(cust.FirstName), html.EscapeString(reward.Name), spent, entry.Ref, left),
	})
}

func (c *Client) deliver(ctx context.Context, m message) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	m.From = c.sender
	m.MessageStream = messageStream

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s email: %w", m.Tag, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", m.Tag, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("post %s email: %w", m.Tag, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	// Postmark normally explains failures in a JSON body; keep the status if it doesn't.
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(apiErr)
	return apiErr
}
