package validation

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{
			name:      "index page on local server",
			url:       "http://localhost:3000/index.html",
			expectErr: false,
		},
		{
			name:      "webdriver hub",
			url:       "http://127.0.0.1:4444/wd/hub",
			expectErr: false,
		},
		{
			name:      "https",
			url:       "https://example.com/path?q=1",
			expectErr: false,
		},
		{
			name:      "file scheme",
			url:       "file:///etc/passwd",
			expectErr: true,
		},
		{
			name:      "javascript scheme",
			url:       "javascript:alert(1)",
			expectErr: true,
		},
		{
			name:      "missing host",
			url:       "http:///index.html",
			expectErr: true,
		},
		{
			name:      "embedded newline",
			url:       "http://localhost:3000/\nindex.html",
			expectErr: true,
		},
		{
			name:      "unparseable",
			url:       "http://[::1",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.expectErr && err == nil {
				t.Errorf("expected error for %q", tt.url)
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error for %q: %v", tt.url, err)
			}
		})
	}
}
