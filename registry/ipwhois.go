package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/scraperwall/fgblock/data"
)

// IPWhois looks up registry data with the ipwho.is JSON API
type IPWhois struct {
	baseURL string
	client  *http.Client
}

type ipwhoisResponse struct {
	Success    *bool  `json:"success"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	Connection struct {
		ISP string `json:"isp"`
	} `json:"connection"`
}

// NewIPWhois creates a client for the ipwho.is compatible service at baseURL
func NewIPWhois(baseURL string, timeout time.Duration) *IPWhois {
	return &IPWhois{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup fetches country, region and ISP for addr
func (w *IPWhois) Lookup(ctx context.Context, addr netip.Addr) (data.Registry, error) {
	url := fmt.Sprintf("%s/%s?fields=country,region,connection.isp", w.baseURL, addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return data.Registry{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return data.Registry{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return data.Registry{}, fmt.Errorf("%s returned %s", w.baseURL, resp.Status)
	}

	var res ipwhoisResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return data.Registry{}, fmt.Errorf("can't decode the response for %s: %w", addr, err)
	}

	if res.Success != nil && !*res.Success {
		msg := res.Message
		if msg == "" {
			msg = "unsuccessful lookup"
		}
		return data.Registry{}, errors.New(msg)
	}

	return data.Registry{
		Country: res.Country,
		Region:  res.Region,
		ISP:     res.Connection.ISP,
	}, nil
}
