package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://api.telegram.org"

// maxMessageLength is the Bot API limit for one text message
const maxMessageLength = 4096

// Client sends messages through the Telegram Bot API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return NewClientWithBaseURL(defaultBaseURL, token)
}

func NewClientWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts text to a chat. Text longer than the API limit is truncated.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	if c.token == "" {
		return fmt.Errorf("telegram bot token is not configured")
	}

	if runes := []rune(text); len(runes) > maxMessageLength {
		text = string(runes[:maxMessageLength])
	}

	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram API error (%d): %s", resp.StatusCode, result.Description)
	}
	return nil
}
