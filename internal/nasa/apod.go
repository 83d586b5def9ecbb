package nasa

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Alextopher/space-photos-bot/internal/download"
)

// APOD downloads every Astronomy Picture of the Day in an inclusive date range.
type APOD struct {
	client
	start, end string
}

// NewAPOD creates an APOD fetcher. Dates are yyyy-mm-dd.
func NewAPOD(baseURL, key, start, end string) (*APOD, error) {
	if !IsValidDate(start) || !IsValidDate(end) {
		return nil, fmt.Errorf("%w: %s..%s", ErrDateInvalid, start, end)
	}
	return &APOD{client: newClient(baseURL, key), start: start, end: end}, nil
}

func (a *APOD) Name() string {
	return "apod"
}

// rangeRequest returns all APODs between two dates (inclusive)
func (a *APOD) rangeRequest(ctx context.Context, d *download.Downloader) ([]*Response, error) {
	logrus.WithFields(logrus.Fields{"start": a.start, "end": a.end}).Info("getting APODs")

	req := a.endpoint("/planetary/apod", map[string]string{
		"start_date": a.start,
		"end_date":   a.end,
	})

	var responses []*Response
	if err := getJSON(ctx, d.Client(), req, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// Fetch saves each entry as nasa_apod_<position>. Entries whose URL has no
// extension (videos, embeds) are skipped but keep their position.
func (a *APOD) Fetch(ctx context.Context, d *download.Downloader) (int, error) {
	responses, err := a.rangeRequest(ctx, d)
	if err != nil {
		return 0, err
	}

	saved := 0
	for i, response := range responses {
		if download.Extension(response.Url) == "" {
			logrus.WithField("apod", response.String()).Info("skipping APOD without image extension")
			continue
		}

		if _, err := d.Download(ctx, fmt.Sprintf("nasa_apod_%d", i), response.Url); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}
