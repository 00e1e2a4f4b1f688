package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectOS(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{"windows desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "Windows"},
		{"mac desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "macOS"},
		{"linux server", "Java/17.0.2 (Linux; amd64)", "Linux"},
		{"android ua contains linux", "Mozilla/5.0 (Linux; Android 13; Pixel 7)", "Android"},
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X)", "iOS"},
		{"empty", "", "unknown"},
		{"unrecognized", "curl/8.4.0", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOS(tt.userAgent))
		})
	}
}
