package download

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Fetcher pulls images from one remote source into the Downloader's folder.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, d *Downloader) (int, error)
}

// FetchAll runs every fetcher in order. The first failure aborts the rest.
func FetchAll(ctx context.Context, d *Downloader, fetchers ...Fetcher) (int, error) {
	total := 0
	for _, f := range fetchers {
		log := logrus.WithField("source", f.Name())
		log.Info("fetching images")

		n, err := f.Fetch(ctx, d)
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: %w", f.Name(), err)
		}

		log.WithField("count", n).Info("source done")
	}
	return total, nil
}
