package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		browser string
		os      string
		device  string
	}{
		{
			name:    "chrome on windows desktop",
			raw:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser: "Chrome",
			os:      "Windows",
			device:  "desktop",
		},
		{
			name:    "safari on iphone",
			raw:     "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			os:      "iOS",
			device:  "mobile",
		},
		{
			name:    "chrome on android phone",
			raw:     "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			browser: "Chrome",
			os:      "Android",
			device:  "mobile",
		},
		{
			name:    "android without Mobile token is a tablet",
			raw:     "Mozilla/5.0 (Linux; Android 13; SM-X910) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser: "Chrome",
			os:      "Android",
			device:  "tablet",
		},
		{
			name:    "ipad is a tablet",
			raw:     "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			os:      "iOS",
			device:  "tablet",
		},
		{
			name:    "firefox on linux desktop",
			raw:     "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser: "Firefox",
			os:      "Linux",
			device:  "desktop",
		},
		{
			name:    "edge wins over its chrome engine",
			raw:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			browser: "Edge",
			os:      "Windows",
			device:  "desktop",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed := Parse(tc.raw)
			assert.Equal(t, tc.browser, parsed.Browser)
			assert.Equal(t, tc.os, parsed.OS)
			assert.Equal(t, tc.device, parsed.DeviceType())
			assert.False(t, parsed.Bot)
		})
	}
}

func TestParseBots(t *testing.T) {
	for _, raw := range []string{
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"curl/8.4.0",
		"python-requests/2.31.0",
	} {
		parsed := Parse(raw)
		assert.True(t, parsed.Bot, "%q should be classified as a bot", raw)
		assert.Equal(t, Unknown, parsed.Browser)
		assert.Equal(t, Unknown, parsed.DeviceType())
	}
}

func TestParseEmptyAndUnmatchable(t *testing.T) {
	for _, raw := range []string{"", "definitely not a user agent"} {
		parsed := Parse(raw)
		assert.Equal(t, Unknown, parsed.Browser)
		assert.Equal(t, Unknown, parsed.OS)
		assert.Equal(t, Unknown, parsed.DeviceType())
		assert.False(t, parsed.Bot)
	}
}
