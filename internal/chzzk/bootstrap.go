package chzzk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// apiResponse is the generic envelope every Chzzk API endpoint wraps its
// payload in.
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Content json.RawMessage `json:"content"`
}

// Session holds the connection parameters resolved for one chat session.
// The access token is single-use for this connection.
type Session struct {
	ChannelID   string
	AccessToken string
}

// getJSON performs a GET against a Chzzk API endpoint, enforces the
// envelope's code field, and unmarshals the content payload into out.
func (c *Connector) getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("JSON decode failed: %w", err)
	}

	if envelope.Code != http.StatusOK {
		if envelope.Message != "" {
			return fmt.Errorf("chzzk api error: %d (%s)", envelope.Code, envelope.Message)
		}
		return fmt.Errorf("chzzk api error: %d", envelope.Code)
	}

	if err := json.Unmarshal(envelope.Content, out); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	return nil
}

// Resolve runs the two-step session bootstrap: the caller-supplied URL
// yields the chat channel id, then the token endpoint yields an access
// token for it. Any failure aborts the whole connection attempt.
func (c *Connector) Resolve(ctx context.Context) (Session, error) {
	var channel struct {
		ChatChannelID string `json:"chatChannelId"`
	}
	if err := c.getJSON(ctx, c.url, nil, &channel); err != nil {
		return Session{}, fmt.Errorf("resolve channel: %w", err)
	}

	var token struct {
		AccessToken string `json:"accessToken"`
	}
	params := url.Values{
		"channelId": {channel.ChatChannelID},
		"chatType":  {"STREAMING"},
	}
	if err := c.getJSON(ctx, c.tokenURL, params, &token); err != nil {
		return Session{}, fmt.Errorf("resolve access token: %w", err)
	}

	return Session{
		ChannelID:   channel.ChatChannelID,
		AccessToken: token.AccessToken,
	}, nil
}
