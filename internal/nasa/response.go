package nasa

import (
	"fmt"
	"time"
)

// Response is a single JSON response from the APOD API.
type Response struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Url         string `json:"url"`
	HdUrl       string `json:"hdurl"`
	MediaType   string `json:"media_type"`
	Explanation string `json:"explanation"`
	Thumbnail   string `json:"thumbnail_url"`
	Copyright   string `json:"copyright"`
	Service     string `json:"service_version"`
}

func (a *Response) String() string {
	return fmt.Sprintf("%s %q (%s) %s", a.Date, a.Title, a.MediaType, a.Url)
}

// EPICImage is one entry of the EPIC natural image list.
type EPICImage struct {
	Identifier string `json:"identifier"`
	Caption    string `json:"caption"`
	Image      string `json:"image"`
	Version    string `json:"version"`
	Date       string `json:"date"`
}

// EPICDateLayout is the format of EPICImage.Date.
const EPICDateLayout = "2006-01-02 15:04:05"

// Taken parses the capture timestamp.
func (e *EPICImage) Taken() (time.Time, error) {
	t, err := time.Parse(EPICDateLayout, e.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadEPICDate, e.Date)
	}
	return t, nil
}
