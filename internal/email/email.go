// Package email renders and delivers the transactional mail used by the auth
// flows: address verification and password reset.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"
)

// Subjects for the two transactional emails.
const (
	SubjectVerifyEmail   = "Verify your email address"
	SubjectResetPassword = "Reset your password"
)

const verifyTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif; background-color: #f8fafc; color: #1e293b; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 32px;">
    <h2 style="color: #2563eb;">Welcome to Notulio{{if .Name}}, {{.Name}}{{end}}</h2>
    <p>Please verify your email address to finish setting up your account.</p>
    <p style="margin: 24px 0;">
      <a href="{{.Link}}" style="background: #2563eb; color: #ffffff; padding: 12px 20px; border-radius: 6px; text-decoration: none;">Verify Email Address</a>
    </p>
    <p style="color: #64748b; font-size: 14px;">If the button does not work, copy this link into your browser:<br>{{.Link}}</p>
    <p style="color: #64748b; font-size: 14px;">If you did not create a Notulio account, you can safely ignore this email.</p>
  </div>
</body>
</html>`

const resetTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif; background-color: #f8fafc; color: #1e293b; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border: 1px solid #e2e8f0; border-radius: 8px; padding: 32px;">
    <h2 style="color: #2563eb;">Reset your Notulio password</h2>
    <p>{{if .Name}}Hi {{.Name}}, we{{else}}We{{end}} received a request to reset the password for your Notulio account.</p>
    <p style="margin: 24px 0;">
      <a href="{{.Link}}" style="background: #2563eb; color: #ffffff; padding: 12px 20px; border-radius: 6px; text-decoration: none;">Reset Password</a>
    </p>
    <p style="color: #64748b; font-size: 14px;">If the button does not work, copy this link into your browser:<br>{{.Link}}</p>
    <p style="color: #64748b; font-size: 14px;">If you did not request a password reset, you can safely ignore this email.</p>
  </div>
</body>
</html>`

var (
	verifyTmpl = template.Must(template.New("verify").Parse(verifyTemplate))
	resetTmpl  = template.Must(template.New("reset").Parse(resetTemplate))
)

type templateData struct {
	Name string
	Link string
}

// RenderVerificationEmail returns the HTML body for the verification email.
func RenderVerificationEmail(name, link string) (string, error) {
	return render(verifyTmpl, templateData{Name: name, Link: link})
}

// RenderPasswordResetEmail returns the HTML body for the reset email.
func RenderPasswordResetEmail(name, link string) (string, error) {
	return render(resetTmpl, templateData{Name: name, Link: link})
}

func render(tmpl *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}

// Sender delivers mail through a SendGrid-style v3 REST API.
type Sender struct {
	apiKey      string
	baseURL     string
	fromAddress string
	fromName    string
	httpClient  *http.Client
}

// NewSender creates a mail sender.
func NewSender(apiKey, baseURL, fromAddress, fromName string, timeout time.Duration) *Sender {
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		apiKey:      apiKey,
		baseURL:     baseURL,
		fromAddress: fromAddress,
		fromName:    fromName,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// SendVerificationEmail renders and delivers the verification email.
func (s *Sender) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	body, err := RenderVerificationEmail(name, link)
	if err != nil {
		return err
	}
	return s.send(ctx, to, SubjectVerifyEmail, body)
}

// SendPasswordResetEmail renders and delivers the reset email.
func (s *Sender) SendPasswordResetEmail(ctx context.Context, to, name, link string) error {
	body, err := RenderPasswordResetEmail(name, link)
	if err != nil {
		return err
	}
	return s.send(ctx, to, SubjectResetPassword, body)
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailRequest struct {
	Personalizations []struct {
		To []mailAddress `json:"to"`
	} `json:"personalizations"`
	From    mailAddress `json:"from"`
	Subject string      `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func (s *Sender) send(ctx context.Context, to, subject, htmlBody string) error {
	payload := mailRequest{
		From:    mailAddress{Email: s.fromAddress, Name: s.fromName},
		Subject: subject,
	}
	payload.Personalizations = append(payload.Personalizations, struct {
		To []mailAddress `json:"to"`
	}{To: []mailAddress{{Email: to}}})
	payload.Content = append(payload.Content, struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{Type: "text/html", Value: htmlBody})

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail request returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
