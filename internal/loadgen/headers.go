package loadgen

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Minimum acceptable HSTS max-age, six months in seconds.
const minHstsMaxAge = 15552000

var reMaxAge = regexp.MustCompile(`(?i)max-age=(\d+)`)

// Finding severity labels.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
)

// HeaderFinding is one security-header weakness observed on a response.
type HeaderFinding struct {
	URL         string `json:"url"`
	Header      string `json:"header"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// InspectHeaders evaluates the security posture of one response's headers.
// Checks are scoped by content type: browser-policy headers only matter for
// HTML documents.
func InspectHeaders(rawURL string, headers http.Header) []HeaderFinding {
	var findings []HeaderFinding
	add := func(header, severity, desc string) {
		findings = append(findings, HeaderFinding{URL: rawURL, Header: header, Severity: severity, Description: desc})
	}

	contentType := strings.ToLower(headers.Get("Content-Type"))
	isHTML := strings.Contains(contentType, "text/html")

	cspValues := headers.Values("Content-Security-Policy")
	cspJoined := strings.ToLower(strings.Join(cspValues, ","))

	if isHTML && len(cspValues) == 0 {
		add("Content-Security-Policy", SeverityMedium,
			"The CSP header is not set, increasing the risk of cross-site scripting.")
	}

	if parsed, err := url.Parse(rawURL); err == nil && strings.EqualFold(parsed.Scheme, "https") {
		hsts := headers.Get("Strict-Transport-Security")
		switch {
		case hsts == "":
			add("Strict-Transport-Security", SeverityMedium,
				"The HSTS header is not set over HTTPS, exposing users to SSL stripping.")
		default:
			if m := reMaxAge.FindStringSubmatch(hsts); m != nil {
				if age, err := strconv.Atoi(m[1]); err == nil && age < minHstsMaxAge {
					add("Strict-Transport-Security", SeverityLow,
						"The HSTS max-age is below six months.")
				}
			} else {
				add("Strict-Transport-Security", SeverityLow,
					"The HSTS header has no parsable max-age directive.")
			}
		}
	}

	if !strings.EqualFold(headers.Get("X-Content-Type-Options"), "nosniff") {
		add("X-Content-Type-Options", SeverityLow,
			"The header should be 'nosniff' to prevent MIME-sniffing away from the declared content type.")
	}

	if isHTML && len(headers.Values("X-Frame-Options")) == 0 && !strings.Contains(cspJoined, "frame-ancestors") {
		add("X-Frame-Options", SeverityLow,
			"Neither X-Frame-Options nor a CSP frame-ancestors directive is set; the page can be framed.")
	}

	return findings
}
