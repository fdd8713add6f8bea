// Package mailer delivers password reset codes to users.
package mailer

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"math"
	"text/template"
	"time"

	"github.com/nkiryanov/netcraft/internal/logger"
)

type ResetCodeMessage struct {
	To        string
	FirstName string
	Code      string
	TTL       time.Duration
}

// Anything able to deliver reset code to the user
type Sender interface {
	SendResetCode(ctx context.Context, msg ResetCodeMessage) error
}

const resetSubject = "NETCRAFT APP - Password Reset Code"

var resetText = template.Must(template.New("text").Parse(`Hello {{.FirstName}},

You have requested to reset your password for your NETCRAFT account.

Your verification code is: {{.Code}}

This code will expire in {{.Minutes}} minutes.

Important:
- Do not share this code with anyone
- This code can only be used once
- If you didn't request this reset, please ignore this email

This is an automated message from NETCRAFT API.
`))

var resetHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2c3e50;">Password Reset Request</h2>
    <p>Hello {{.FirstName}},</p>
    <p>You have requested to reset your password for your NETCRAFT account.</p>
    <div style="background-color: #f8f9fa; border: 2px solid #e9ecef; border-radius: 8px; padding: 20px; margin: 20px 0; text-align: center;">
      <h3 style="margin: 0; color: #495057;">Your verification code is:</h3>
      <div style="font-size: 32px; font-weight: bold; color: #007bff; margin: 10px 0; letter-spacing: 3px;">{{.Code}}</div>
      <p style="margin: 0; font-size: 14px; color: #6c757d;">This code will expire in {{.Minutes}} minutes</p>
    </div>
    <p><strong>Important:</strong></p>
    <ul>
      <li>Do not share this code with anyone</li>
      <li>This code can only be used once</li>
      <li>If you didn't request this reset, please ignore this email</li>
    </ul>
  </div>
</body>
</html>
`))

// Render plain text and html bodies of the message
func render(msg ResetCodeMessage) (text string, html string, err error) {
	data := struct {
		FirstName string
		Code      string
		Minutes   int
	}{
		FirstName: msg.FirstName,
		Code:      msg.Code,
		Minutes:   int(math.Ceil(msg.TTL.Minutes())),
	}

	var tb, hb bytes.Buffer
	if err := resetText.Execute(&tb, data); err != nil {
		return "", "", err
	}
	if err := resetHTML.Execute(&hb, data); err != nil {
		return "", "", err
	}

	return tb.String(), hb.String(), nil
}

// LogSender does not send anything, only logs the fact
// Used when no mail provider configured
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(l logger.Logger) *LogSender {
	return &LogSender{logger: l.With("component", "mailer")}
}

func (s *LogSender) SendResetCode(_ context.Context, msg ResetCodeMessage) error {
	// Never log the code itself
	s.logger.Warn("Mail provider not configured, reset code not sent", "to", msg.To)
	return nil
}
