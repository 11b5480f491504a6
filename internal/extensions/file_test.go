package extensions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExtension_WriteThenRead(t *testing.T) {
	ext := NewFileExtension()
	path := filepath.Join(t.TempDir(), "out.txt")

	_, err := ext.Invoke("write_file", map[string]interface{}{"path": path, "content": "hi there"})
	require.NoError(t, err)

	resp, err := ext.Invoke("read_file", map[string]interface{}{"path": path})
	require.NoError(t, err)
	require.False(t, resp.IsError, "unexpected error response: %+v", resp)
	assert.Equal(t, "hi there", resp.Content[0].Text)
}

func TestFileExtension_BlockedPath(t *testing.T) {
	ext := NewFileExtension()

	resp, err := ext.Invoke("read_file", map[string]interface{}{"path": "/etc/passwd"})
	require.NoError(t, err)
	assert.True(t, resp.IsError, "expected /etc/passwd to be blocked")
}

func TestFileExtension_MissingFile(t *testing.T) {
	ext := NewFileExtension()

	resp, err := ext.Invoke("read_file", map[string]interface{}{"path": filepath.Join(os.TempDir(), "definitely-missing.txt")})
	require.NoError(t, err)
	assert.True(t, resp.IsError, "expected missing file to be an error response")
}
