package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationLogSink_Write(t *testing.T) {
	// Arrange
	dir := filepath.Join(t.TempDir(), "nested", "notifications")
	sink := NewNotificationLogSink(dir)

	// Act
	path, err := sink.Write("notification-a.txt", []byte("hello"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "notification-a.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestNotificationLogSink_NeverOverwrites(t *testing.T) {
	sink := NewNotificationLogSink(t.TempDir())

	_, err := sink.Write("same.txt", []byte("first"))
	require.NoError(t, err)
	_, err = sink.Write("same.txt", []byte("second"))
	assert.Error(t, err)

	data, _ := os.ReadFile(filepath.Join(sink.Dir(), "same.txt"))
	assert.Equal(t, "first", string(data))
}

func TestNotificationLogSink_RejectsPaths(t *testing.T) {
	sink := NewNotificationLogSink(t.TempDir())

	for _, name := range []string{"", "..", "../escape.txt", "a/b.txt"} {
		_, err := sink.Write(name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestNotificationLogSink_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewNotificationLogSink(filepath.Join(file, "sub")).Write("n.txt", []byte("x"))

	assert.Error(t, err)
}
