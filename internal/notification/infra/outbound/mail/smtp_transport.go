package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	// UseSSL activa TLS implícito (465); si no, gomail negocia STARTTLS cuando el servidor lo ofrece.
	UseSSL bool
}

// SMTPTransport envía los correos con gomail.
type SMTPTransport struct {
	cfg  Config
	dial func() (gomail.SendCloser, error)
	log  *zap.Logger
}

// Verificación estática
var _ notificationDomain.MailTransport = (*SMTPTransport)(nil)

func NewSMTPTransport(cfg Config, log *zap.Logger) *SMTPTransport {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.FromName == "" {
		cfg.FromName = "Battery Passport System"
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = cfg.Username
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseSSL
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}

	return &SMTPTransport{cfg: cfg, dial: d.Dial, log: log}
}

// Send devuelve el Message-ID generado. Si ctx expira antes de que el servidor
// responda se devuelve el error del contexto, pero gomail no se puede cancelar: la
// conexión en curso termina por su cuenta y el correo aún puede entregarse. El motor
// marca esos intentos con metadata.deliveryUncertain para que un reintento manual
// sepa que puede duplicar el envío.
func (t *SMTPTransport) Send(ctx context.Context, msg notificationDomain.MailMessage) (string, error) {
	if msg.To == "" {
		return "", fmt.Errorf("mail without recipient")
	}

	messageID := t.messageID()
	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.cfg.FromEmail, t.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	done := make(chan error, 1)
	go func() {
		done <- t.send(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("failed to send email: %w", err)
		}
		t.log.Debug("Email sent", zap.String("to", msg.To), zap.String("message_id", messageID))
		return messageID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *SMTPTransport) send(m *gomail.Message) error {
	s, err := t.dial()
	if err != nil {
		return err
	}
	defer s.Close()
	return gomail.Send(s, m)
}

func (t *SMTPTransport) messageID() string {
	domain := "localhost"
	if at := strings.LastIndex(t.cfg.FromEmail, "@"); at >= 0 && at < len(t.cfg.FromEmail)-1 {
		domain = t.cfg.FromEmail[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
