// Package utmify delivers conversion events to the UTMify orders API and,
// for freshly generated charges, to its tracking pixel.
package utmify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

const (
	dateLayout   = "2006-01-02 15:04:05"
	maxErrorBody = 1024
)

var (
	hundred       = decimal.NewFromInt(100)
	gatewayFee    = decimal.RequireFromString("0.05")
	userShare     = decimal.RequireFromString("0.95")
	statusMapping = map[domain.EntryStatus]string{
		domain.EntryStatusPending:   "waiting_payment",
		domain.EntryStatusCompleted: "paid",
		domain.EntryStatusFailed:    "refused",
		domain.EntryStatusCancelled: "refused",
	}
)

// Config holds API credentials and payload defaults.
type Config struct {
	APIToken    string
	BaseURL     string
	TrackingURL string
	PixelID     string
	Platform    string
	ProductName string
	IsTest      bool
}

// Client implements usecase.AttributionSink.
type Client struct {
	cfg    Config
	http   *http.Client
	now    func() time.Time
	logger zerolog.Logger
}

var _ usecase.AttributionSink = (*Client)(nil)

// New builds a client. httpClient may be nil; per-attempt deadlines come
// from the caller's context.
func New(cfg Config, httpClient *http.Client, clock usecase.Clock, logger zerolog.Logger) (*Client, error) {
	if cfg.APIToken == "" || cfg.BaseURL == "" {
		return nil, errors.New("utmify: api token and base url are required")
	}
	if cfg.Platform == "" {
		cfg.Platform = "betledger"
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "Deposit"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	now := time.Now
	if clock != nil {
		now = clock.Now
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		now:    now,
		logger: logger.With().Str("component", "utmify").Logger(),
	}, nil
}

// SendEvent posts the order, then the pixel event for generated charges.
// The pixel is auxiliary: its failure is logged, not returned.
func (c *Client) SendEvent(ctx context.Context, event usecase.AttributionEvent) error {
	if event.Entry == nil {
		return errors.New("utmify: event without entry")
	}

	if err := c.post(ctx, c.cfg.BaseURL+"/orders", c.order(event), true); err != nil {
		return err
	}

	if event.Type == domain.AttributionEventPixGenerated && c.cfg.TrackingURL != "" && c.cfg.PixelID != "" {
		if err := c.post(ctx, c.cfg.TrackingURL, c.initiateCheckout(event), false); err != nil {
			c.logger.Warn().Err(err).Str("entry_id", event.Entry.ID).Msg("pixel event failed")
		}
	}
	return nil
}

type order struct {
	OrderID            string             `json:"orderId"`
	Platform           string             `json:"platform"`
	PaymentMethod      string             `json:"paymentMethod"`
	Status             string             `json:"status"`
	CreatedAt          string             `json:"createdAt"`
	ApprovedDate       *string            `json:"approvedDate"`
	RefundedAt         *string            `json:"refundedAt"`
	Customer           customer           `json:"customer"`
	Products           []product          `json:"products"`
	TrackingParameters trackingParameters `json:"trackingParameters"`
	Commission         commission         `json:"commission"`
	IsTest             bool               `json:"isTest"`
}

type customer struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Document *string `json:"document"`
	Country  string  `json:"country"`
	IP       *string `json:"ip"`
}

type product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PlanID       *string `json:"planId"`
	PlanName     *string `json:"planName"`
	Quantity     int     `json:"quantity"`
	PriceInCents int64   `json:"priceInCents"`
}

type trackingParameters struct {
	Src         *string `json:"src"`
	Sck         *string `json:"sck"`
	UTMSource   *string `json:"utm_source"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMMedium   *string `json:"utm_medium"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

type commission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

func (c *Client) order(event usecase.AttributionEvent) order {
	e := event.Entry
	status, ok := statusMapping[e.Status]
	if !ok {
		status = statusMapping[domain.EntryStatusPending]
	}

	created := e.CreatedAt
	if created.IsZero() {
		created = c.now()
	}
	var approved *string
	if e.Status == domain.EntryStatusCompleted {
		approved = ptr(formatDate(c.now()))
	}

	cust := customer{Country: "BR", IP: ptr(event.ClientIP)}
	if u := event.User; u != nil {
		cust.Name = u.Name
		cust.Email = u.Email
		cust.Phone = ptr(u.Phone)
		cust.Document = ptr(u.Document)
	}

	total := cents(e.Amount)
	p := event.Params
	return order{
		OrderID:       e.ID,
		Platform:      c.cfg.Platform,
		PaymentMethod: "pix",
		Status:        status,
		CreatedAt:     formatDate(created),
		ApprovedDate:  approved,
		Customer:      cust,
		Products: []product{{
			ID:           e.ID,
			Name:         c.cfg.ProductName,
			Quantity:     1,
			PriceInCents: total,
		}},
		TrackingParameters: trackingParameters{
			Src:         ptr(p.Src),
			Sck:         ptr(p.Sck),
			UTMSource:   ptr(p.UTMSource),
			UTMCampaign: ptr(p.UTMCampaign),
			UTMMedium:   ptr(p.UTMMedium),
			UTMContent:  ptr(p.UTMContent),
			UTMTerm:     ptr(p.UTMTerm),
		},
		Commission: commission{
			TotalPriceInCents:     total,
			GatewayFeeInCents:     cents(e.Amount.Mul(gatewayFee)),
			UserCommissionInCents: cents(e.Amount.Mul(userShare)),
		},
		IsTest: c.cfg.IsTest,
	}
}

type pixelEvent struct {
	Type  string      `json:"type"`
	Lead  pixelLead   `json:"lead"`
	Event pixelDetail `json:"event"`
}

type pixelLead struct {
	PixelID         string `json:"pixelId"`
	ID              string `json:"_id"`
	UserAgent       string `json:"userAgent"`
	IP              string `json:"ip"`
	UpdatedAt       string `json:"updatedAt"`
	IPConfiguration string `json:"ipConfiguration"`
	Parameters      string `json:"parameters"`
}

type pixelDetail struct {
	SourceURL   string      `json:"sourceUrl"`
	PageTitle   string      `json:"pageTitle"`
	Value       json.Number `json:"value"`
	Currency    string      `json:"currency"`
	ContentType string      `json:"content_type"`
}

func (c *Client) initiateCheckout(event usecase.AttributionEvent) pixelEvent {
	p := event.Params
	ip := event.ClientIP
	if ip == "" {
		ip = "unknown"
	}
	source := p.PageURL
	if source == "" || source == "direct" {
		source = p.Referrer
	}

	return pixelEvent{
		Type: "InitiateCheckout",
		Lead: pixelLead{
			PixelID:         c.cfg.PixelID,
			ID:              leadID(),
			UserAgent:       p.UserAgent,
			IP:              ip,
			UpdatedAt:       c.now().UTC().Format(time.RFC3339),
			IPConfiguration: "IPV6_OR_IPV4",
			Parameters:      parameterString(p),
		},
		Event: pixelDetail{
			SourceURL:   source,
			PageTitle:   c.cfg.ProductName,
			Value:       json.Number(event.Entry.Amount.StringFixed(2)),
			Currency:    "BRL",
			ContentType: "pix_deposit",
		},
	}
}

func (c *Client) post(ctx context.Context, target string, payload any, withToken bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if withToken {
		req.Header.Set("x-api-token", c.cfg.APIToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("utmify: %s returned %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func parameterString(p domain.AttributionParams) string {
	pairs := []struct{ k, v string }{
		{"utm_source", p.UTMSource},
		{"utm_medium", p.UTMMedium},
		{"utm_campaign", p.UTMCampaign},
		{"utm_content", p.UTMContent},
		{"utm_term", p.UTMTerm},
		{"src", p.Src},
		{"sck", p.Sck},
		{"fbclid", p.FBClid},
		{"gclid", p.GClid},
	}
	var b strings.Builder
	for _, kv := range pairs {
		if kv.v == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv.k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.v))
	}
	return b.String()
}

func cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// leadID is a random 24 hex character id in the ObjectId shape the pixel expects.
func leadID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
