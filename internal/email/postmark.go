package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

// Client sends one-time codes through Postmark.
type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint; used by tests.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendMFACode delivers a login challenge code.
func (c *Client) SendMFACode(toEmail, code string) error {
	text := fmt.Sprintf("Your Bunkhouse verification code is: %s\n\nThis code expires in 10 minutes. If you did not try to sign in, you can ignore this email.", code)
	html := fmt.Sprintf(`<p>Your Bunkhouse verification code is:</p><p style="font-size:24px"><strong>%s</strong></p><p>This code expires in 10 minutes. If you did not try to sign in, you can ignore this email.</p>`, code)
	return c.send(toEmail, "Your Bunkhouse verification code", html, text)
}

// SendResetCode delivers a password recovery code.
func (c *Client) SendResetCode(toEmail, code string) error {
	text := fmt.Sprintf("Your Bunkhouse password reset code is: %s\n\nThis code expires in 30 minutes. If you did not request a reset, you can ignore this email.", code)
	html := fmt.Sprintf(`<p>Your Bunkhouse password reset code is:</p><p style="font-size:24px"><strong>%s</strong></p><p>This code expires in 30 minutes. If you did not request a reset, you can ignore this email.</p>`, code)
	return c.send(toEmail, "Reset your Bunkhouse password", html, text)
}

func (c *Client) send(toEmail, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
