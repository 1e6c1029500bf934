package chromium

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDevToolsPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, devToolsPortFile)

	_, err := readDevToolsPort(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("9222\n"), 0o600))
	_, err = readDevToolsPort(path)
	assert.Error(t, err, "partial file")

	require.NoError(t, os.WriteFile(path, []byte("9222\n/devtools/browser/abc-123\n"), 0o600))
	got, err := readDevToolsPort(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc-123", got)
}

func TestSanitizeNamespace(t *testing.T) {
	assert.Equal(t, "anthropic-auth-1234", sanitizeNamespace("persist:anthropic-auth-1234"))
	assert.Equal(t, "a-b-c", sanitizeNamespace("a/b:c"))
}

func TestHostArgs(t *testing.T) {
	h := NewHost(WithHeadless(true), WithExtraArgs("--lang=en"))
	args := h.args("/tmp/profile")

	assert.Contains(t, args, "--user-data-dir=/tmp/profile")
	assert.Contains(t, args, "--remote-debugging-port=0")
	assert.Contains(t, args, "--headless=new")
	assert.Contains(t, args, "--lang=en")
	assert.Equal(t, "about:blank", args[len(args)-1])

	assert.NotContains(t, NewHost().args("/tmp/profile"), "--headless=new")
}
