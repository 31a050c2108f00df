package loadgen

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func headerNames(findings []HeaderFinding) []string {
	names := make([]string, 0, len(findings))
	for _, f := range findings {
		names = append(names, f.Header)
	}
	return names
}

func TestInspectHeadersBareHTMLResponse(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")

	names := headerNames(InspectHeaders("https://target.example/", h))
	assert.Contains(t, names, "Content-Security-Policy")
	assert.Contains(t, names, "Strict-Transport-Security")
	assert.Contains(t, names, "X-Content-Type-Options")
	assert.Contains(t, names, "X-Frame-Options")
}

func TestInspectHeadersWellConfigured(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
	h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	h.Set("X-Content-Type-Options", "nosniff")

	assert.Empty(t, InspectHeaders("https://target.example/", h))
}

func TestInspectHeadersShortHSTSMaxAge(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Strict-Transport-Security", "max-age=3600")
	h.Set("X-Content-Type-Options", "nosniff")

	findings := InspectHeaders("https://api.target.example/v1", h)
	assert.Len(t, findings, 1)
	assert.Equal(t, "Strict-Transport-Security", findings[0].Header)
	assert.Equal(t, SeverityLow, findings[0].Severity)
}

func TestInspectHeadersPlainHTTPSkipsHSTS(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "frame-ancestors 'self'")

	names := headerNames(InspectHeaders("http://target.example/", h))
	assert.NotContains(t, names, "Strict-Transport-Security")
}

func TestInspectHeadersCSPFrameAncestorsReplacesXFO(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	h.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
	h.Set("X-Content-Type-Options", "nosniff")

	names := headerNames(InspectHeaders("http://target.example/", h))
	assert.NotContains(t, names, "X-Frame-Options")
}
