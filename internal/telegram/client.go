// Package telegram provides Telegram bot integration for the dashboard.
//
// This package handles:
//   - Sending the weekly digest (text plus heatmap photo)
//   - Sending critical alerts when the backend keeps failing
//   - Long polling for bot commands such as /resumo
//
// Architecture:
//   - Client: Main struct with bot token and chat ID
//   - Update handler: Background goroutine for long polling
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the Telegram Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// CaptionLimit is the longest caption Telegram accepts on a photo.
	CaptionLimit = 1024

	// pollTimeout is the long polling window in seconds.
	pollTimeout = 30
)

// Options configures a Client.
//
// Fields:
//   - BotToken: Telegram bot API token from @BotFather
//   - ChatID: Target chat ID for notifications
//   - BaseURL: API endpoint, DefaultBaseURL when empty
//   - HTTPClient: Transport, a 60s-timeout client when nil
//   - DebugMode: If true, log messages instead of sending them
type Options struct {
	BotToken   string
	ChatID     string
	BaseURL    string
	HTTPClient *http.Client
	DebugMode  bool
	Logger     *zap.Logger
}

// Client represents a Telegram bot client. A nil *Client is valid and
// drops every message, so callers never need to check whether Telegram
// is configured.
type Client struct {
	botToken  string
	chatID    string
	baseURL   string
	http      *http.Client
	debugMode bool
	logger    *zap.Logger
	pollRetry time.Duration
}

// Message represents a Telegram message for sending.
type Message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
	ReplyToMessageID      int    `json:"reply_to_message_id,omitempty"`
}

// Update represents a Telegram update from getUpdates.
type Update struct {
	UpdateID int              `json:"update_id"`
	Message  *IncomingMessage `json:"message,omitempty"`
}

// IncomingMessage represents a received Telegram message.
type IncomingMessage struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text"`
}

// Chat represents a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// User represents a Telegram user.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// apiResponse is the envelope of every Bot API answer.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// sentMessage is the part of a sent message we read back.
type sentMessage struct {
	MessageID int `json:"message_id"`
}

// NewClient creates a Telegram client.
//
// Returns:
//   - *Client: Configured client, or nil if token or chat ID is missing
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BotToken == "" || opts.ChatID == "" {
		logger.Info("telegram not configured, notifications disabled",
			zap.Bool("token_set", opts.BotToken != ""),
			zap.Bool("chat_set", opts.ChatID != ""))
		return nil
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Long polling holds the connection for pollTimeout seconds
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.DebugMode {
		logger.Info("telegram debug mode enabled, messages will be logged only")
	}

	return &Client{
		botToken:  opts.BotToken,
		chatID:    opts.ChatID,
		baseURL:   baseURL,
		http:      httpClient,
		debugMode: opts.DebugMode,
		logger:    logger,
		pollRetry: 5 * time.Second,
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)
}

// doRequest posts a JSON payload to a Bot API method and returns the
// result field.
//
// Parameters:
//   - method: Telegram API method name (e.g., "sendMessage")
//   - payload: Request payload (will be JSON marshaled)
func (c *Client) doRequest(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

// doMultipart uploads a file to a Bot API method.
func (c *Client) doMultipart(ctx context.Context, method string, fields map[string]string, fileField, fileName string, data []byte) (json.RawMessage, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req)
}

func (c *Client) send(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API error %d: %s", result.ErrorCode, result.Description)
	}
	return result.Result, nil
}

func messageID(raw json.RawMessage) int {
	var m sentMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0
	}
	return m.MessageID
}

// SendMessage sends an HTML message to the configured chat and returns its
// message ID. In debug mode the message is logged and 0 is returned.
func (c *Client) SendMessage(ctx context.Context, text string) (int, error) {
	if c == nil {
		return 0, nil
	}
	return c.sendText(ctx, c.chatID, text, 0)
}

func (c *Client) sendText(ctx context.Context, chatID, text string, replyTo int) (int, error) {
	if c.debugMode {
		c.logger.Info("telegram message (debug)", zap.String("chat", chatID), zap.String("text", text))
		return 0, nil
	}

	raw, err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyToMessageID:      replyTo,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send Telegram message: %w", err)
	}
	return messageID(raw), nil
}

// SendPhoto uploads a PNG with an HTML caption.
func (c *Client) SendPhoto(ctx context.Context, png []byte, caption string) (int, error) {
	if c == nil {
		return 0, nil
	}
	return c.sendPhoto(ctx, c.chatID, png, caption)
}

func (c *Client) sendPhoto(ctx context.Context, chatID string, png []byte, caption string) (int, error) {
	if c.debugMode {
		c.logger.Info("telegram photo (debug)", zap.String("chat", chatID), zap.Int("bytes", len(png)), zap.String("caption", caption))
		return 0, nil
	}

	fields := map[string]string{
		"chat_id":    chatID,
		"caption":    caption,
		"parse_mode": "HTML",
	}
	raw, err := c.doMultipart(ctx, "sendPhoto", fields, "photo", "heatmap.png", png)
	if err != nil {
		return 0, fmt.Errorf("failed to send Telegram photo: %w", err)
	}
	return messageID(raw), nil
}

// SendDigest sends a digest text with an optional image. Text that fits
// in a caption goes with the photo; longer text follows it as a reply.
func (c *Client) SendDigest(ctx context.Context, text string, image []byte) error {
	if c == nil {
		c.nilLog("digest")
		return nil
	}
	return c.sendReply(ctx, c.chatID, Reply{Text: text, Image: image})
}

func (c *Client) sendReply(ctx context.Context, chatID string, r Reply) error {
	if len(r.Image) == 0 {
		_, err := c.sendText(ctx, chatID, r.Text, 0)
		return err
	}
	if utf8.RuneCountInString(r.Text) <= CaptionLimit {
		_, err := c.sendPhoto(ctx, chatID, r.Image, r.Text)
		return err
	}

	title, _, _ := strings.Cut(r.Text, "\n")
	id, err := c.sendPhoto(ctx, chatID, r.Image, title)
	if err != nil {
		return err
	}
	_, err = c.sendText(ctx, chatID, r.Text, id)
	return err
}

// SendCriticalAlert reports a backend outage.
//
// Parameters:
//   - errorType: Short error category
//   - errorMsg: Error detail
//   - retryCount: Attempts made before giving up
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error {
	if c == nil {
		c.nilLog("critical alert")
		return nil
	}

	message := fmt.Sprintf(
		"🚨 <b>ALERTA CRÍTICO - DASHBOARD</b>\n\n"+
			"<b>Tipo:</b> %s\n"+
			"<b>Erro:</b> %s\n"+
			"<b>Tentativas:</b> %d\n"+
			"<b>Horário:</b> %s\n\n"+
			"⚠️ <b>Ação necessária:</b> verifique o backend.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		time.Now().Format("2006-01-02 15:04:05"),
	)

	if _, err := c.SendMessage(ctx, message); err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}
	c.logger.Info("critical alert sent", zap.String("type", errorType))
	return nil
}

func (c *Client) nilLog(what string) {
	// Receiver is nil here, so there is no logger to use.
	zap.L().Debug("telegram not configured, skipping", zap.String("what", what))
}
