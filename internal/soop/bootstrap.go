package soop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// aquaChannel carries the chat connection parameters the aqua API
// resolves for a broadcast.
type aquaChannel struct {
	Domain   string `json:"CHDOMAIN"`
	Port     string `json:"CHPT"`
	ChatNo   uint32 `json:"CHATNO"`
	Password string `json:"PWD"`
}

type aquaResponse struct {
	Channel aquaChannel `json:"CHANNEL"`
}

// Resolve forwards the aqua URL's query string verbatim as a form body to
// the aqua API and extracts the chat connection parameters. No defaults
// are substituted: any HTTP, parsing, or missing-field failure aborts the
// connection attempt.
func (c *Connector) Resolve(ctx context.Context) (aquaChannel, error) {
	parsed, err := url.Parse(c.url)
	if err != nil {
		return aquaChannel{}, fmt.Errorf("invalid aqua url: %w", err)
	}
	query := parsed.RawQuery
	if query == "" {
		return aquaChannel{}, fmt.Errorf("aqua url has no query component")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.aquaURL, strings.NewReader(query))
	if err != nil {
		return aquaChannel{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return aquaChannel{}, fmt.Errorf("aqua api request failed: %w", err)
	}
	defer resp.Body.Close()

	var aqua aquaResponse
	if err := json.NewDecoder(resp.Body).Decode(&aqua); err != nil {
		return aquaChannel{}, fmt.Errorf("parse aqua response: %w", err)
	}

	channel := aqua.Channel
	if channel.Domain == "" {
		return aquaChannel{}, fmt.Errorf("aqua response missing chat domain")
	}
	if channel.Port == "" {
		return aquaChannel{}, fmt.Errorf("aqua response missing chat port")
	}
	if channel.ChatNo == 0 {
		return aquaChannel{}, fmt.Errorf("aqua response missing chat room number")
	}
	return channel, nil
}
