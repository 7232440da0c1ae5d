package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	require.NoError(t, err)

	n, err := store.Save("requests/abc/file.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	_, err = os.Stat(filepath.Join(root, "requests", "abc", "file.pdf"))
	require.NoError(t, err)

	rc, err := store.Open("requests/abc/file.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4 body", string(data))

	require.NoError(t, store.Remove("requests/abc/file.pdf"))
	require.NoError(t, store.Remove("requests/abc/file.pdf"))

	_, err = store.Open("requests/abc/file.pdf")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocal_rejects_escaping_keys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../secret", "/etc/passwd", "..", "a/../../b"} {
		_, err := store.Save(key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
