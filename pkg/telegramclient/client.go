/**
 * @description
 * This package provides a client for the membership checks the rewards
 * callers run against the Telegram Bot API. It encapsulates the logic for
 * making HTTP requests to the getChatMember endpoint and interpreting the
 * returned membership status.
 *
 * Membership verification always happens outside the ledger's atomic credit
 * path: handlers call IsMember before invoking the engine, never inside it.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package telegramclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a client for the Telegram Bot API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new Bot API client. baseURL is normally
// "https://api.telegram.org" and is overridable for tests.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// chatMemberResponse is the envelope returned by getChatMember.
type chatMemberResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		Status string `json:"status"`
	} `json:"result"`
	Description string `json:"description"`
}

// memberStatuses are the getChatMember statuses that count as present in the
// chat. "left" and "kicked" do not.
var memberStatuses = map[string]bool{
	"creator":       true,
	"administrator": true,
	"member":        true,
	"restricted":    true,
}

// IsMember reports whether userID currently belongs to the given chat
// (channel or group). chatID is either a numeric id or an @username.
func (c *Client) IsMember(ctx context.Context, chatID string, userID int64) (bool, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getChatMember", c.BaseURL, c.Token)
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("user_id", strconv.FormatInt(userID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build getChatMember request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("getChatMember request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read getChatMember response: %w", err)
	}

	var parsed chatMemberResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, fmt.Errorf("failed to decode getChatMember response: %w", err)
	}
	if !parsed.OK {
		return false, fmt.Errorf("telegram api error: %s", parsed.Description)
	}

	return memberStatuses[parsed.Result.Status], nil
}
