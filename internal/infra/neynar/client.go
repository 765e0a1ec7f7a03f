// Package neynar looks up Farcaster users and signers through the Neynar APIs.
package neynar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"triviacast-service/internal/domain"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://api.neynar.com"
	DefaultHubURL  = "https://hub-api.neynar.com"

	// bulk-by-address accepts at most this many addresses per call
	maxAddressesPerCall = 350
	maxParallelCalls    = 4
)

type Client struct {
	apiKey  string
	baseURL string
	hubURL  string
	http    *http.Client
}

func NewClient(apiKey, baseURL, hubURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hubURL == "" {
		hubURL = DefaultHubURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hubURL:  strings.TrimRight(hubURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type user struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

// UsersByAddress maps lower-cased wallet addresses to the first Farcaster user
// verified for them. Unknown addresses are absent from the result.
func (c *Client) UsersByAddress(ctx context.Context, addresses []string) (map[string]domain.FarcasterUser, error) {
	unique := dedupe(addresses)
	out := make(map[string]domain.FarcasterUser, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCalls)
	for start := 0; start < len(unique); start += maxAddressesPerCall {
		end := min(start+maxAddressesPerCall, len(unique))
		chunk := unique[start:end]
		g.Go(func() error {
			users, err := c.bulkByAddress(ctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for addr, u := range users {
				out[addr] = u
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) bulkByAddress(ctx context.Context, addresses []string) (map[string]domain.FarcasterUser, error) {
	params := url.Values{}
	params.Set("addresses", strings.Join(addresses, ","))

	var body map[string][]user
	// 404 means none of the addresses has a Farcaster account
	found, err := c.getJSON(ctx, c.baseURL+"/v2/farcaster/user/bulk-by-address?"+params.Encode(), &body)
	if err != nil || !found {
		return nil, err
	}

	out := make(map[string]domain.FarcasterUser, len(body))
	for addr, users := range body {
		if len(users) == 0 {
			continue
		}
		u := users[0]
		out[strings.ToLower(addr)] = domain.FarcasterUser{
			FID:         u.FID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			PfpURL:      u.PfpURL,
		}
	}
	return out, nil
}

type signerEvents struct {
	Events []struct {
		SignerEventBody struct {
			Key       string `json:"key"`
			EventType string `json:"eventType"`
		} `json:"signerEventBody"`
	} `json:"events"`
}

// IsActiveSigner reports whether keyHex was added as a signer of fid on chain.
func (c *Client) IsActiveSigner(ctx context.Context, fid int64, keyHex string) (bool, error) {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))

	var body signerEvents
	found, err := c.getJSON(ctx, c.hubURL+"/v1/onChainSignersByFid?"+params.Encode(), &body)
	if err != nil || !found {
		return false, err
	}
	for _, e := range body.Events {
		if strings.EqualFold(e.SignerEventBody.Key, keyHex) && e.SignerEventBody.EventType != "SIGNER_EVENT_TYPE_REMOVE" {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dst interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: neynar: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("%w: neynar status %d", domain.ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("%w: decode neynar: %v", domain.ErrUpstream, err)
	}
	return true, nil
}

func dedupe(addresses []string) []string {
	seen := make(map[string]bool, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
