package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
)

const systemName = "Battery Passport System"

var mailHTML = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #f4f4f4; padding: 20px; text-align: center; }
    .content { padding: 20px; background: #fff; }
    .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h2>{{.System}}</h2>
    </div>
    <div class="content">
      <h3>{{.Title}}</h3>
      <p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
      {{- if .Details}}
      <div style="margin-top: 20px; padding: 15px; background: #f9f9f9; border-left: 4px solid #007bff;">
        <h4>Details:</h4>
        <pre style="font-size: 12px;">{{.Details}}</pre>
      </div>
      {{- end}}
    </div>
    <div class="footer">
      <p>This is an automated message. Please do not reply to this email.</p>
      <p>&copy; {{.Year}} {{.System}}. All rights reserved.</p>
    </div>
  </div>
</body>
</html>
`))

// RenderMail compone el correo de una notificación: HTML escapado y texto plano.
func RenderMail(n *notificationDomain.Notification, now time.Time) (notificationDomain.MailMessage, error) {
	details := metadataJSON(n.Metadata)

	var html bytes.Buffer
	err := mailHTML.Execute(&html, struct {
		System  string
		Title   string
		Lines   []string
		Details string
		Year    int
	}{
		System:  systemName,
		Title:   n.Title,
		Lines:   strings.Split(n.Body, "\n"),
		Details: details,
		Year:    now.Year(),
	})
	if err != nil {
		return notificationDomain.MailMessage{}, fmt.Errorf("render mail: %w", err)
	}

	text := n.Title + "\n\n" + n.Body + "\n\n"
	if details != "" {
		text += "Details: " + details
	}

	return notificationDomain.MailMessage{
		To:      n.RecipientEmail,
		Subject: n.Title,
		HTML:    html.String(),
		Text:    text,
	}, nil
}

// FormatLogRecord es el contenido del fichero cuando no hay SMTP configurado.
func FormatLogRecord(n *notificationDomain.Notification, at time.Time) []byte {
	recipient := n.RecipientEmail
	if recipient == "" {
		recipient = notificationDomain.Placeholder
	}
	metadata := metadataJSON(n.Metadata)
	if metadata == "" {
		metadata = "{}"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Notification Log - %s\n", at.UTC().Format(time.RFC1123))
	b.WriteString("----------------------------------------------\n")
	fmt.Fprintf(&b, "Event Type: %s\n", n.EventType)
	fmt.Fprintf(&b, "Type: %s\n", n.Channel)
	fmt.Fprintf(&b, "Title: %s\n", n.Title)
	fmt.Fprintf(&b, "Message: %s\n", n.Body)
	fmt.Fprintf(&b, "Recipient: %s\n", recipient)
	b.WriteString("Status: logged_to_file\n")
	fmt.Fprintf(&b, "Priority: %s\n", n.Priority)
	fmt.Fprintf(&b, "Metadata: %s\n", metadata)
	b.WriteString("----------------------------------------------")
	return []byte(b.String())
}

// LogFileName es único por notificación aunque dos entregas coincidan en el milisegundo.
func LogFileName(n *notificationDomain.Notification, at time.Time) string {
	stamp := strings.ReplaceAll(at.UTC().Format("2006-01-02T15:04:05.000Z07:00"), ":", "-")
	return fmt.Sprintf("notification-%s-%s.txt", stamp, n.ID.String()[:8])
}

func metadataJSON(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(data)
}
