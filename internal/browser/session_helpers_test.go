package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"

	"github.com/kv9x/dowser-cli/internal/config"
)

// These tests cover the pure helpers; driving a live browser is out of scope
// for unit tests.

func TestJSEncodeEscapes(t *testing.T) {
	assert.Equal(t, `"plain"`, jsEncode("plain"))
	assert.Equal(t, `"with \"quotes\""`, jsEncode(`with "quotes"`))
	// Marshal escapes angle brackets, which keeps markup inert inside
	// injected expressions.
	assert.Equal(t, `"\u003cscript\u003e"`, jsEncode("<script>"))
}

func TestKeyCodeMapping(t *testing.T) {
	assert.Equal(t, kb.Enter, keyCode("Enter"))
	assert.Equal(t, kb.Tab, keyCode("Tab"))
	assert.Equal(t, kb.Escape, keyCode("Escape"))
	assert.Equal(t, "x", keyCode("x"))
}

func TestAllocatorOptionsReflectConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Browser.Args = []string{"--proxy-server=localhost:8080", "--mute-audio"}

	m := &Manager{cfg: cfg}
	opts := m.buildAllocatorOptions()

	// Overrides and custom args append after the chromedp defaults.
	assert.Greater(t, len(opts), len(chromedp.DefaultExecAllocatorOptions))
}
