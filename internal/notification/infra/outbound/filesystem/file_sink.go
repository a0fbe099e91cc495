package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
)

// NotificationLogSink es un adaptador outbound que vuelca cada notificación a su
// propio fichero dentro de un directorio.
type NotificationLogSink struct {
	dir string
	mu  sync.Mutex // serializa la creación del directorio y de los ficheros
}

// Verificación estática
var _ notificationDomain.FileSink = (*NotificationLogSink)(nil)

// NewNotificationLogSink es el constructor. El directorio se crea en la primera escritura.
func NewNotificationLogSink(dir string) *NotificationLogSink {
	if dir == "" {
		dir = "./notifications"
	}
	return &NotificationLogSink{dir: dir}
}

func (s *NotificationLogSink) Dir() string { return s.dir }

// Write crea el fichero; nunca sobrescribe uno existente.
func (s *NotificationLogSink) Write(name string, content []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid log file name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create log file: %w", err)
	}

	_, werr := f.Write(content)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write log file: %w", err)
	}
	return path, nil
}
