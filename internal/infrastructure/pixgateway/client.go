// Package pixgateway talks to the PIX payment provider: OAuth client
// credentials for the token, then one call per charge.
package pixgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/usecase"
)

const maxErrorBody = 2048

// Config holds provider credentials and endpoints.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PostbackURL  string
	Timeout      time.Duration
	TokenRetries uint64
}

// Client implements usecase.PaymentGateway over the provider's REST API.
type Client struct {
	baseURL     string
	postbackURL string
	http        *http.Client
	tokens      oauth2.TokenSource
	logger      zerolog.Logger
}

var _ usecase.PaymentGateway = (*Client)(nil)

// New builds a client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("pixgateway: base url and client credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TokenRetries == 0 {
		cfg.TokenRetries = 2
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// The token source outlives any request, so it gets its own context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &Client{
		baseURL:     base,
		postbackURL: cfg.PostbackURL,
		http:        httpClient,
		tokens: &retryingSource{
			src:     cc.TokenSource(tokenCtx),
			retries: cfg.TokenRetries,
		},
		logger: logger.With().Str("component", "pixgateway").Logger(),
	}, nil
}

type chargeRequest struct {
	Amount      json.Number `json:"amount"`
	PostbackURL string      `json:"postbackUrl,omitempty"`
	ExternalID  string      `json:"externalId,omitempty"`
	Description string      `json:"description,omitempty"`
	Payer       payer       `json:"payer"`
}

type payer struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Email    string `json:"email"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	QRCode      string `json:"qrcode"`
	QRCodeImage string `json:"qrcodeImage"`
	Expiration  string `json:"expiration"`
}

// CreatePixCharge requests a new PIX QR code for the given amount.
func (c *Client) CreatePixCharge(ctx context.Context, req usecase.PixChargeRequest) (*usecase.PixCharge, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token: %v", domain.ErrUpstreamGateway, err)
	}

	body, err := json.Marshal(chargeRequest{
		Amount:      json.Number(req.Amount.StringFixed(2)),
		PostbackURL: c.postbackURL,
		ExternalID:  req.ExternalID,
		Description: req.Description,
		Payer: payer{
			Name:     req.Payer.Name,
			Document: req.Payer.Document,
			Email:    req.Payer.Email,
		},
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pix/qrcode", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("external_id", req.ExternalID).
			Str("body", string(snippet)).
			Msg("pix charge rejected")
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamGateway, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode charge: %v", domain.ErrUpstreamGateway, err)
	}
	if out.ID == "" || out.QRCode == "" {
		return nil, fmt.Errorf("%w: charge response missing id or qrcode", domain.ErrUpstreamGateway)
	}

	return &usecase.PixCharge{
		ProviderTransactionID: out.ID,
		QRCode:                out.QRCode,
		QRCodeImage:           out.QRCodeImage,
		Expiration:            parseExpiration(out.Expiration),
	}, nil
}

// parseExpiration accepts RFC 3339 or the provider's space separated form.
// Unparseable values are treated as unknown.
func parseExpiration(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// retryingSource retries transient token failures with exponential backoff.
// Credential rejections are not retried.
type retryingSource struct {
	src     oauth2.TokenSource
	retries uint64
}

func (r *retryingSource) Token() (*oauth2.Token, error) {
	var token *oauth2.Token
	op := func() error {
		t, err := r.src.Token()
		if err != nil {
			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		token = t
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	if err := backoff.Retry(op, backoff.WithMaxRetries(b, r.retries)); err != nil {
		return nil, err
	}
	return token, nil
}
