// Package sms implements the SMS/WhatsApp gateway collaborator. The gateway
// is an opaque external HTTP service; a single attempt is made per message
// and failures are left to the caller to log and swallow.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loanflow_backend/platform/config"
	"loanflow_backend/platform/logger"
	"loanflow_backend/platform/phone"
)

type Client struct {
	baseURL        string
	apiKey         string
	defaultChannel string
	http           *http.Client
	log            *logger.Logger
}

type gatewayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Channel string `json:"channel"`
}

// NewClient builds a gateway client from config. Returns nil when the gateway
// is not configured; a nil client drops messages without error.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if cfg.GetSMSGatewayURL() == "" {
		return nil
	}

	channel := cfg.GetSMSDefaultChannel()
	if channel == "" {
		channel = "sms"
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:         cfg.GetSMSGatewayKey(),
		defaultChannel: channel,
		http:           &http.Client{Timeout: 10 * time.Second},
		log:            log,
	}
}

// Send delivers one message to the given phone number on the default channel.
func (c *Client) Send(ctx context.Context, phoneNumber string, message string) error {
	return c.SendOnChannel(ctx, phoneNumber, message, c.channelOrDefault(""))
}

// SendOnChannel delivers one message on an explicit channel ("sms" or "whatsapp").
func (c *Client) SendOnChannel(ctx context.Context, phoneNumber, message, channel string) error {
	if c == nil {
		return nil
	}

	normalized := phone.NormalizeE164(phoneNumber)

	payload := gatewayRequest{
		Phone:   normalized,
		Message: message,
		Channel: c.channelOrDefault(channel),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "phone", normalized, "channel", payload.Channel)
	return nil
}

func (c *Client) channelOrDefault(channel string) string {
	if channel != "" {
		return channel
	}
	if c != nil && c.defaultChannel != "" {
		return c.defaultChannel
	}
	return "sms"
}
