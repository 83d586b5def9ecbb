package transport

import (
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingTransport is an http.RoundTripper that logs outbound requests at
// debug level. Query strings and bot tokens are never written to the log.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger logrus.FieldLogger
}

// NewClient returns the client shared by every remote API call. A zero
// timeout keeps net/http's default of waiting forever.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingTransport{Logger: logrus.StandardLogger()},
		Timeout:   timeout,
	}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	log := t.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	fields := logrus.Fields{
		"method":  req.Method,
		"url":     Redact(req.URL),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Debug("outbound request failed")
		return resp, err
	}

	fields["status"] = resp.StatusCode
	log.WithFields(fields).Debug("outbound request")
	return resp, nil
}

var botToken = regexp.MustCompile(`/bot[^/]+/`)

// Redact renders u without its query and with any /bot<token>/ path segment masked.
// The mask only uses unreserved characters so String does not escape it.
func Redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	clean.User = nil
	clean.Path = botToken.ReplaceAllString(clean.Path, "/botREDACTED/")
	clean.RawPath = ""
	return clean.String()
}

// RedactString is Redact for a raw URL. Unparsable input is returned as "".
func RedactString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return Redact(u)
}
