// internal/browser/default_allocator_options_test.go
package browser

import (
	"runtime"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/uiforge/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: true})
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, true, flags["disable-gpu"])
		assert.Equal(t, false, flags["enable-automation"])
		assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
		assert.NotContains(t, flags, "allow-insecure-localhost")
	})

	t.Run("HeadlessDisabled", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{Headless: false})
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, false, flags["disable-gpu"])
	})

	t.Run("IgnoreTLSErrors", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{IgnoreTLSErrors: true})
		assert.Equal(t, true, flags["ignore-certificate-errors"])
		assert.Equal(t, true, flags["allow-insecure-localhost"])
	})

	t.Run("WithCustomArgs", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{
			Headless: true,
			Args:     []string{"--custom-arg1", "--lang=de-DE", "--headless=false", "--"},
		})
		assert.Equal(t, true, flags["custom-arg1"])
		assert.Equal(t, "de-DE", flags["lang"])
		assert.Equal(t, "false", flags["headless"], "custom args win over defaults")
		assert.NotContains(t, flags, "")
	})

	t.Run("ContainerFlags", func(t *testing.T) {
		flags := allocatorFlags(config.BrowserConfig{})
		_, ok := flags["no-sandbox"]
		assert.Equal(t, runtime.GOOS == "linux", ok)
	})
}

func TestDefaultAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	cfg := config.BrowserConfig{Headless: true}
	opts := DefaultAllocatorOptions(cfg)
	assert.Len(t, opts, base+len(allocatorFlags(cfg)))

	cfg.Viewport = map[string]int{"width": 1280, "height": 800}
	assert.Len(t, DefaultAllocatorOptions(cfg), base+len(allocatorFlags(cfg))+1, "window size is added for a full viewport")

	cfg.Viewport = map[string]int{"width": 1280}
	assert.Len(t, DefaultAllocatorOptions(cfg), base+len(allocatorFlags(cfg)))
}
