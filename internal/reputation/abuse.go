package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/watchdesk-systems/watchdesk/internal/metrics"
)

// ProviderAbuse names the confidence-score provider.
const ProviderAbuse = "abusedb"

// ProviderResult is one provider's answer for one IP.
type ProviderResult struct {
	Provider   string
	Confidence *int
	Raw        json.RawMessage
}

// AbuseClient talks to the generic IP check/report API. Checks are JSON
// GETs; report submissions are form-encoded POSTs with categories joined as
// comma-separated integers.
type AbuseClient struct {
	baseURL string
	apiKey  string
	doer    *resilientDoer
	quota   *Quota
}

// NewAbuseClient creates a client for the confidence-score provider.
func NewAbuseClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *AbuseClient {
	return &AbuseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		doer:    newResilientDoer(ProviderAbuse, timeout, maxRetries),
		quota:   NewQuota(),
	}
}

// Quota exposes the provider's report-path quota state.
func (c *AbuseClient) Quota() *Quota {
	return c.quota
}

type abuseCheckResponse struct {
	Data struct {
		AbuseConfidenceScore int  `json:"abuseConfidenceScore"`
		TotalReports         int  `json:"totalReports"`
		IsWhitelisted        bool `json:"isWhitelisted"`
	} `json:"data"`
}

// Check queries the confidence score for an IP. This is the read-only
// endpoint; it never consumes a report submission.
func (c *AbuseClient) Check(ctx context.Context, ip string) (*ProviderResult, error) {
	resp, err := c.doer.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/check?ipAddress="+url.QueryEscape(ip), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(ProviderAbuse, "error").Inc()
		return nil, fmt.Errorf("abuse check %s: %w", ip, err)
	}
	defer resp.Body.Close()

	c.refreshQuota(resp)

	if resp.StatusCode == http.StatusTooManyRequests {
		c.quota.MarkExhausted()
		metrics.QuotaExhaustions.WithLabelValues(ProviderAbuse).Inc()
		return nil, fmt.Errorf("abuse check %s: quota exhausted", ip)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(ProviderAbuse, "error").Inc()
		return nil, fmt.Errorf("abuse check %s: status %d", ip, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("abuse check %s: read body: %w", ip, err)
	}

	var parsed abuseCheckResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.ProviderCalls.WithLabelValues(ProviderAbuse, "error").Inc()
		return nil, fmt.Errorf("abuse check %s: decode: %w", ip, err)
	}

	c.quota.MarkHealthy()
	metrics.ProviderCalls.WithLabelValues(ProviderAbuse, "ok").Inc()

	score := parsed.Data.AbuseConfidenceScore
	return &ProviderResult{
		Provider:   ProviderAbuse,
		Confidence: &score,
		Raw:        body,
	}, nil
}

// Report files an abuse report for the IP with the given category codes.
func (c *AbuseClient) Report(ctx context.Context, ip string, categories []int, comment string) error {
	cats := make([]string, len(categories))
	for i, cat := range categories {
		cats[i] = strconv.Itoa(cat)
	}
	form := url.Values{
		"ip":         {ip},
		"categories": {strings.Join(cats, ",")},
		"comment":    {comment},
	}
	encoded := form.Encode()

	resp, err := c.doer.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/report", strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("abuse report %s: %w", ip, err)
	}
	defer resp.Body.Close()

	c.refreshQuota(resp)

	if resp.StatusCode == http.StatusTooManyRequests {
		c.quota.MarkExhausted()
		metrics.QuotaExhaustions.WithLabelValues(ProviderAbuse).Inc()
		return fmt.Errorf("abuse report %s: quota exhausted", ip)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("abuse report %s: status %d", ip, resp.StatusCode)
	}

	c.quota.MarkHealthy()
	return nil
}

func (c *AbuseClient) refreshQuota(resp *http.Response) {
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			c.quota.Update(remaining)
		}
	}
}
