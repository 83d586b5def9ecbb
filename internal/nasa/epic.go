package nasa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Alextopher/space-photos-bot/internal/download"
)

// EPIC downloads the most recent day of natural-colour EPIC images.
type EPIC struct {
	client
}

// NewEPIC creates an EPIC fetcher.
func NewEPIC(baseURL, key string) *EPIC {
	return &EPIC{client: newClient(baseURL, key)}
}

func (e *EPIC) Name() string {
	return "epic"
}

// ArchiveURL is the date-scoped PNG location of an image.
func (e *EPIC) ArchiveURL(image EPICImage) (string, error) {
	taken, err := image.Taken()
	if err != nil {
		return "", err
	}

	path := fmt.Sprintf("/EPIC/archive/natural/%04d/%02d/%02d/png/%s.png",
		taken.Year(), int(taken.Month()), taken.Day(), url.PathEscape(image.Image))
	return e.endpoint(path, nil), nil
}

// resolve issues a GET against the archive URL and returns the URL the
// response was finally served from.
func (e *EPIC) resolve(ctx context.Context, hc *http.Client, archive string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archive, nil)
	if err != nil {
		return "", err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := download.CheckStatus(resp); err != nil {
		return "", err
	}
	return resp.Request.URL.String(), nil
}

// Fetch saves each image as nasa_epic_<position>.
func (e *EPIC) Fetch(ctx context.Context, d *download.Downloader) (int, error) {
	var images []EPICImage
	if err := getJSON(ctx, d.Client(), e.endpoint("/EPIC/api/natural/images", nil), &images); err != nil {
		return 0, err
	}

	saved := 0
	for i, image := range images {
		archive, err := e.ArchiveURL(image)
		if err != nil {
			return saved, err
		}

		photo, err := e.resolve(ctx, d.Client(), archive)
		if err != nil {
			return saved, err
		}

		if download.Extension(photo) == "" {
			logrus.WithField("image", image.Image).Debug("skipping EPIC image without extension")
			continue
		}

		if _, err := d.Download(ctx, fmt.Sprintf("nasa_epic_%d", i), photo); err != nil {
			return saved, err
		}
		saved++
	}
	return saved, nil
}
