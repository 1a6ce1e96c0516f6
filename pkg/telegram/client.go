package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/angelmondragon/shiftledger/pkg/config"
)

const defaultBaseURL = "https://api.telegram.org"

var (
	ErrMissingToken  = errors.New("telegram bot token is required")
	ErrMissingChatID = errors.New("telegram chat id is required")
	ErrRateLimited   = errors.New("telegram rate limited")
)

// APIError is a non-2xx response from the Bot API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram api error: status %d: %s", e.StatusCode, e.Description)
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Client posts HTML messages through the Telegram Bot API. The bot token is
// per store, so it is passed on every call rather than fixed on the client.
type Client struct {
	http *resty.Client
}

// NewClient builds a client that retries once on 429 or transport errors.
func NewClient(cfg config.TelegramConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})

	return &Client{http: httpClient}
}

// SendMessage delivers text to chatID using the given bot token.
func (c *Client) SendMessage(ctx context.Context, token, chatID, text string) error {
	token = strings.TrimSpace(token)
	chatID = strings.TrimSpace(chatID)
	if token == "" {
		return ErrMissingToken
	}
	if chatID == "" {
		return ErrMissingChatID
	}

	var result apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:                chatID,
			Text:                  text,
			ParseMode:             "HTML",
			DisableWebPagePreview: true,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, result.Description)
	}
	if resp.IsError() || !result.OK {
		return &APIError{StatusCode: resp.StatusCode(), Description: result.Description}
	}
	return nil
}
