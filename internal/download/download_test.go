package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alextopher/space-photos-bot/internal/storage"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"jpg", "https://live.staticflickr.com/65535/52913254231_d5d1e6a3a4_o.jpg", ".jpg"},
		{"png with query", "https://api.nasa.gov/EPIC/archive/natural/2024/01/02/png/epic_1b_2024.png?api_key=DEMO", ".png"},
		{"dot in host only", "https://www.youtube.com/embed/abc", ""},
		{"no path", "https://apod.nasa.gov", ""},
		{"trailing slash", "https://apod.nasa.gov/apod/image/", ""},
		{"double extension", "https://example.com/archive.tar.gz", ".gz"},
		{"dotted directory", "https://example.com/v1.2/photo", ""},
		{"fragment ignored", "https://example.com/a.gif#frag", ".gif"},
		{"unparsable", "://bad url", ""},
		{"dotfile", "https://x.com/.hidden", ""},
		{"leading dots", "https://x.com/a/..jpg", ""},
		{"dotfile with extension", "https://x.com/.hidden.png", ".png"},
		{"escaped dot", "https://x.com/a%2Ejpg", ""},
		{"trailing dot", "https://x.com/a.", "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Extension(tt.url))
		})
	}
}

type recorded struct{ file, source string }

type fakeRecorder struct {
	calls []recorded
}

func (r *fakeRecorder) Fetched(file, source string) error {
	r.calls = append(r.calls, recorded{file, source})
	return nil
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image:" + r.URL.Path))
	}))
	defer srv.Close()

	folder := storage.NewInMemoryFS()
	rec := &fakeRecorder{}
	d := NewDownloader(srv.Client(), folder, rec)

	source := srv.URL + "/photos/big.jpeg?api_key=SECRET"
	file, err := d.Download(context.Background(), "spacex_3", source)
	require.NoError(t, err)
	require.Equal(t, "spacex_3.jpeg", file)

	data, err := folder.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, "image:/photos/big.jpeg", string(data))

	// the stored name and the source URL agree on the extension
	require.Equal(t, Extension(source), path.Ext(file))

	require.Equal(t, []recorded{{"spacex_3.jpeg", srv.URL + "/photos/big.jpeg"}}, rec.calls)
}

func TestDownloadWithoutExtension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("raw"))
	}))
	defer srv.Close()

	folder := storage.NewInMemoryFS()
	file, err := NewDownloader(srv.Client(), folder, nil).Download(context.Background(), "raw", srv.URL+"/blob")
	require.NoError(t, err)
	require.Equal(t, "raw", file)
	require.True(t, folder.HasFile("raw"))
}

func TestDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	folder := storage.NewInMemoryFS()
	_, err := NewDownloader(srv.Client(), folder, nil).Download(context.Background(), "nasa_apod_0", srv.URL+"/missing.jpg?api_key=SECRET")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.NotContains(t, err.Error(), "SECRET")
	require.False(t, folder.HasFile("nasa_apod_0.jpg"))
}

type stubFetcher struct {
	name  string
	count int
	err   error
	ran   *[]string
}

func (s stubFetcher) Name() string { return s.name }

func (s stubFetcher) Fetch(ctx context.Context, d *Downloader) (int, error) {
	*s.ran = append(*s.ran, s.name)
	return s.count, s.err
}

func TestFetchAll(t *testing.T) {
	var ran []string
	d := NewDownloader(nil, storage.NewInMemoryFS(), nil)

	total, err := FetchAll(context.Background(), d,
		stubFetcher{name: "spacex", count: 2, ran: &ran},
		stubFetcher{name: "apod", count: 3, ran: &ran},
	)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Equal(t, []string{"spacex", "apod"}, ran)
}

func TestFetchAllAbortsOnFirstError(t *testing.T) {
	var ran []string
	d := NewDownloader(nil, storage.NewInMemoryFS(), nil)
	boom := errors.New("boom")

	total, err := FetchAll(context.Background(), d,
		stubFetcher{name: "spacex", count: 1, ran: &ran},
		stubFetcher{name: "apod", err: boom, ran: &ran},
		stubFetcher{name: "epic", count: 4, ran: &ran},
	)
	require.ErrorIs(t, err, boom)
	require.True(t, strings.HasPrefix(err.Error(), "apod: "))
	require.Equal(t, 1, total)
	require.Equal(t, []string{"spacex", "apod"}, ran)
}
