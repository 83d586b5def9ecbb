package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Alextopher/space-photos-bot/internal/storage"
	"github.com/Alextopher/space-photos-bot/internal/transport"
)

// Extension returns the extension of the last element of the URL's escaped
// path, including the leading dot. Leading dots of the name do not start an
// extension, so ".hidden" and "..jpg" have none. It returns "" when the path
// has none or the URL does not parse.
func Extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	p := u.EscapedPath()
	name := strings.TrimLeft(p[strings.LastIndex(p, "/")+1:], ".")
	return path.Ext(name)
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// CheckStatus turns a non-2xx response into a *StatusError.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var u *url.URL
	if resp.Request != nil {
		u = resp.Request.URL
	}
	return &StatusError{
		URL:    transport.Redact(u),
		Status: resp.Status,
		Code:   resp.StatusCode,
	}
}

// Recorder is told about every file the Downloader saves.
type Recorder interface {
	Fetched(file, source string) error
}

// Downloader fetches remote files into a storage folder.
type Downloader struct {
	client   *http.Client
	folder   storage.FS
	recorder Recorder
}

// NewDownloader creates a Downloader. recorder may be nil.
func NewDownloader(client *http.Client, folder storage.FS, recorder Recorder) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, folder: folder, recorder: recorder}
}

// Client is the HTTP client fetchers should use for their API calls.
func (d *Downloader) Client() *http.Client {
	return d.client
}

// Download saves the body of rawURL as <name><extension> and returns the
// stored file name. An existing file with the same name is overwritten.
func (d *Downloader) Download(ctx context.Context, name, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}

	file := name + Extension(rawURL)
	if err := d.folder.WriteFile(file, body); err != nil {
		return "", fmt.Errorf("writing %s: %w", file, err)
	}

	logrus.WithFields(logrus.Fields{"file": file, "bytes": len(body)}).Info("image saved")

	if d.recorder != nil {
		if err := d.recorder.Fetched(file, transport.RedactString(rawURL)); err != nil {
			logrus.WithError(err).Warn("failed to record download in journal")
		}
	}

	return file, nil
}
