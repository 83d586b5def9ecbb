package spacex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Alextopher/space-photos-bot/internal/download"
)

// ErrNoLaunchWithPhotos is returned when no launch in the collection has
// original-resolution flickr photos.
var ErrNoLaunchWithPhotos = errors.New("no SpaceX launch with photos found")

// Launch is the part of a v5 launch record the bot reads.
type Launch struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Date  string `json:"date_utc"`
	Links struct {
		Flickr struct {
			Small    []string `json:"small"`
			Original []string `json:"original"`
		} `json:"flickr"`
	} `json:"links"`
}

// Photos is the launch's list of original-resolution photo URLs.
func (l *Launch) Photos() []string {
	return l.Links.Flickr.Original
}

// LatestWithPhotos scans launches from the end of the list and returns the ID
// of the first one that has original photos.
func LatestWithPhotos(launches []Launch) (string, error) {
	for i := len(launches) - 1; i >= 0; i-- {
		if len(launches[i].Photos()) > 0 {
			return launches[i].ID, nil
		}
	}
	return "", ErrNoLaunchWithPhotos
}

// Fetcher downloads the photos of the most recent launch that has any.
type Fetcher struct {
	baseURL string
}

// NewFetcher creates a fetcher for the API rooted at baseURL
// (e.g. https://api.spacexdata.com/v5).
func NewFetcher(baseURL string) *Fetcher {
	return &Fetcher{baseURL: strings.TrimRight(baseURL, "/")}
}

func (f *Fetcher) Name() string {
	return "spacex"
}

// Fetch downloads every original photo of the selected launch as spacex_<n>.
func (f *Fetcher) Fetch(ctx context.Context, d *download.Downloader) (int, error) {
	var launches []Launch
	if err := f.get(ctx, d.Client(), f.baseURL+"/launches/", &launches); err != nil {
		return 0, fmt.Errorf("listing launches: %w", err)
	}

	id, err := LatestWithPhotos(launches)
	if err != nil {
		return 0, err
	}

	var launch Launch
	if err := f.get(ctx, d.Client(), f.baseURL+"/launches/"+url.PathEscape(id), &launch); err != nil {
		return 0, fmt.Errorf("fetching launch %s: %w", id, err)
	}

	logrus.WithFields(logrus.Fields{"launch": launch.Name, "id": id, "photos": len(launch.Photos())}).Info("selected SpaceX launch")

	for i, photo := range launch.Photos() {
		if _, err := d.Download(ctx, fmt.Sprintf("spacex_%d", i), photo); err != nil {
			return i, err
		}
	}
	return len(launch.Photos()), nil
}

func (f *Fetcher) get(ctx context.Context, client *http.Client, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := download.CheckStatus(resp); err != nil {
		return err
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
