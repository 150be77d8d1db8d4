package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/watchdesk-systems/watchdesk/internal/metrics"
)

// ProviderIOC names the indicator-of-compromise provider.
const ProviderIOC = "iocdb"

// IOCClient talks to the IOC-search API: JSON POSTs with a "query"
// discriminator field. Its confidence carries malware-family context the
// generic score does not, so the gateway prefers it by default.
type IOCClient struct {
	baseURL string
	apiKey  string
	doer    *resilientDoer
	quota   *Quota
}

// NewIOCClient creates a client for the IOC-search provider.
func NewIOCClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *IOCClient {
	return &IOCClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		doer:    newResilientDoer(ProviderIOC, timeout, maxRetries),
		quota:   NewQuota(),
	}
}

// Quota exposes the provider's quota state.
func (c *IOCClient) Quota() *Quota {
	return c.quota
}

type iocSearchRequest struct {
	Query      string `json:"query"`
	SearchTerm string `json:"search_term"`
}

type iocSearchResponse struct {
	QueryStatus string `json:"query_status"`
	Data        []struct {
		ConfidenceLevel int    `json:"confidence_level"`
		Malware         string `json:"malware"`
		ThreatType      string `json:"threat_type"`
	} `json:"data"`
}

// Check searches the IOC database for the IP. "no_result" is a successful
// answer with a nil confidence, not an error.
func (c *IOCClient) Check(ctx context.Context, ip string) (*ProviderResult, error) {
	payload, err := json.Marshal(iocSearchRequest{Query: "search_ioc", SearchTerm: ip})
	if err != nil {
		return nil, fmt.Errorf("ioc search %s: marshal: %w", ip, err)
	}

	resp, err := c.doer.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Auth-Key", c.apiKey)
		}
		return req, nil
	})
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(ProviderIOC, "error").Inc()
		return nil, fmt.Errorf("ioc search %s: %w", ip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.quota.MarkExhausted()
		metrics.QuotaExhaustions.WithLabelValues(ProviderIOC).Inc()
		return nil, fmt.Errorf("ioc search %s: quota exhausted", ip)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCalls.WithLabelValues(ProviderIOC, "error").Inc()
		return nil, fmt.Errorf("ioc search %s: status %d", ip, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ioc search %s: read body: %w", ip, err)
	}

	var parsed iocSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.ProviderCalls.WithLabelValues(ProviderIOC, "error").Inc()
		return nil, fmt.Errorf("ioc search %s: decode: %w", ip, err)
	}

	c.quota.MarkHealthy()
	metrics.ProviderCalls.WithLabelValues(ProviderIOC, "ok").Inc()

	result := &ProviderResult{Provider: ProviderIOC, Raw: body}
	if parsed.QueryStatus == "ok" && len(parsed.Data) > 0 {
		// Take the highest confidence across returned IOCs.
		best := 0
		for _, d := range parsed.Data {
			if d.ConfidenceLevel > best {
				best = d.ConfidenceLevel
			}
		}
		result.Confidence = &best
	}
	return result, nil
}
