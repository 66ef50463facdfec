package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// timestampLayout renders like "Monday, January 2, 2006 at 3:04:05 PM UTC".
const timestampLayout = "Monday, January 2, 2006 at 3:04:05 PM MST"

var messageTemplate = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
  <head>
    <style>
      body { font-family: 'Inter', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
      .header { background: #000; color: #fff; padding: 30px 20px; text-align: center; margin-bottom: 30px; }
      .header h1 { margin: 0; font-size: 24px; font-weight: 300; letter-spacing: 2px; }
      .content { background: #f8f8f8; padding: 30px; border-radius: 4px; }
      .field { margin-bottom: 20px; }
      .label { font-weight: 600; text-transform: uppercase; font-size: 12px; letter-spacing: 1px; color: #666; margin-bottom: 5px; }
      .value { font-size: 16px; color: #000; padding: 10px 0; }
      .message-box { background: #fff; padding: 20px; border-left: 3px solid #000; margin-top: 10px; white-space: pre-wrap; }
      .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #999; text-align: center; }
    </style>
  </head>
  <body>
    <div class="header"><h1>{{.Title}}</h1></div>
    <div class="content">
      <div class="field"><div class="label">From</div><div class="value">{{.Name}}</div></div>
      <div class="field"><div class="label">Email</div><div class="value"><a href="mailto:{{.Email}}">{{.Email}}</a></div></div>
      <div class="field"><div class="label">Message</div><div class="message-box">{{.Message}}</div></div>
      <div class="field"><div class="label">Submitted</div><div class="value">{{.Submitted}}</div></div>
      <div class="field"><div class="label">IP Address</div><div class="value">{{.ClientID}}</div></div>
    </div>
    <div class="footer">{{.Footer}}</div>
  </body>
</html>
`))

type messageView struct {
	Title     string
	Name      string
	Email     string
	Message   string
	Submitted string
	ClientID  string
	Footer    string
}

func renderHTML(view messageView) ([]byte, error) {
	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}

func renderText(view messageView) []byte {
	return []byte(fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s\n\nSubmitted: %s\nIP: %s",
		view.Name, view.Email, view.Message, view.Submitted, view.ClientID))
}

func formatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

func footerFor(site string, test bool) string {
	switch {
	case site == "" && test:
		return "This is a test message from the contact form"
	case site == "":
		return "This message was sent from the contact form"
	case test:
		return fmt.Sprintf("This is a test message from %s contact form", site)
	default:
		return fmt.Sprintf("This message was sent from %s contact form", site)
	}
}
