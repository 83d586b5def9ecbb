package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Alextopher/space-photos-bot/internal/download"
)

var (
	// ErrDateInvalid is returned when given date is not in the correct format
	ErrDateInvalid = errors.New("date is not in the correct format, use yyyy-mm-dd and a day after 1995-06-16")
	// ErrBadEPICDate is returned when an EPIC entry carries an unparsable timestamp
	ErrBadEPICDate = errors.New("invalid EPIC date")
)

// IsValidDate checks if a date is formatted correctly and occurs after the first published APOD
func IsValidDate(date string) bool {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false
	}

	start := time.Date(1995, 6, 16, 0, 0, 0, 0, time.UTC)
	return d.After(start)
}

// client is shared by the APOD and EPIC fetchers.
type client struct {
	baseURL string
	key     string
}

func newClient(baseURL, key string) client {
	return client{baseURL: strings.TrimRight(baseURL, "/"), key: key}
}

// endpoint builds baseURL+path with the api key and extra query parameters.
func (c client) endpoint(path string, params map[string]string) string {
	q := url.Values{}
	q.Set("api_key", c.key)
	for k, v := range params {
		q.Set(k, v)
	}
	return c.baseURL + path + "?" + q.Encode()
}

// getJSON decodes the body of a successful GET into v.
func getJSON(ctx context.Context, hc *http.Client, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := download.CheckStatus(resp); err != nil {
		return err
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
