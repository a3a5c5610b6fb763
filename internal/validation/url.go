package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL validates a URL handed to the browser session or used as the
// WebDriver endpoint. Only http and https with a host are accepted.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	if strings.ContainsAny(rawURL, " \n\r\t") {
		return fmt.Errorf("URL contains whitespace")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}

	return nil
}
