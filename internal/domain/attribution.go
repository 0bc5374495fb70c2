package domain

import (
	"net/url"
	"time"
)

// AttributionParams are marketing and click identifiers captured with a request.
// They are advisory and never influence money movement.
type AttributionParams struct {
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
	UTMContent  string `json:"utm_content,omitempty"`
	UTMTerm     string `json:"utm_term,omitempty"`
	Src         string `json:"src,omitempty"`
	Sck         string `json:"sck,omitempty"`
	FBClid      string `json:"fbclid,omitempty"`
	GClid       string `json:"gclid,omitempty"`
	IP          string `json:"ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	PageURL     string `json:"page_url,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
}

// IsEmpty reports whether no tracking field is set. Client details
// (ip, user agent) alone do not count as attribution.
func (p AttributionParams) IsEmpty() bool {
	return p.UTMSource == "" && p.UTMMedium == "" && p.UTMCampaign == "" &&
		p.UTMContent == "" && p.UTMTerm == "" && p.Src == "" && p.Sck == "" &&
		p.FBClid == "" && p.GClid == "" && p.PageURL == "" && p.Referrer == ""
}

// QueryString renders the tracking fields as "?k=v&..." or "" when empty.
func (p AttributionParams) QueryString() string {
	v := url.Values{}
	add := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	add("utm_source", p.UTMSource)
	add("utm_medium", p.UTMMedium)
	add("utm_campaign", p.UTMCampaign)
	add("utm_content", p.UTMContent)
	add("utm_term", p.UTMTerm)
	add("src", p.Src)
	add("sck", p.Sck)
	add("fbclid", p.FBClid)
	add("gclid", p.GClid)
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// AttributionSource records which tier supplied the params used for delivery.
type AttributionSource string

const (
	AttributionSourceEntry   AttributionSource = "entry"
	AttributionSourceIP      AttributionSource = "ip"
	AttributionSourceDefault AttributionSource = "default"
)

// AttributionRecordTTL is how long a per-address record is retained.
const AttributionRecordTTL = 30 * 24 * time.Hour

// AttributionRecord associates tracking params with a client network address.
type AttributionRecord struct {
	IP          string            `json:"ip"`
	Params      AttributionParams `json:"params"`
	LastUpdated time.Time         `json:"last_updated"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// DefaultAttribution is the last-resort parameter set used when neither the
// entry nor the client address carries any tracking data.
func DefaultAttribution(campaign, pageURL string) AttributionParams {
	return AttributionParams{
		UTMSource:   "direct",
		UTMMedium:   "organic",
		UTMCampaign: campaign,
		PageURL:     pageURL,
		Referrer:    "direct",
	}
}

// AttributionEventType distinguishes the notifications sent to the sink.
type AttributionEventType string

const (
	AttributionEventPixGenerated AttributionEventType = "pix_generated"
	AttributionEventPurchase     AttributionEventType = "purchase"
)
