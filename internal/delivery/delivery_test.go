package delivery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alextopher/space-photos-bot/internal/messenger"
	"github.com/Alextopher/space-photos-bot/internal/storage"
)

type sent struct {
	chat string
	name string
	size int
}

type fakeMessenger struct {
	chat     messenger.Chat
	resolves int
	sends    []sent
	limit    int
	failOn   string
}

func (f *fakeMessenger) Resolve(ctx context.Context) (messenger.Chat, error) {
	f.resolves++
	if f.chat.ID == "" {
		return messenger.Chat{}, messenger.ErrNoPendingUpdates
	}
	return f.chat, nil
}

func (f *fakeMessenger) SendDocument(ctx context.Context, chat messenger.Chat, name string, data []byte) error {
	if name == f.failOn {
		return errors.New("send rejected")
	}
	f.sends = append(f.sends, sent{chat.ID, name, len(data)})
	return nil
}

func (f *fakeMessenger) MaxUploadBytes() int {
	return f.limit
}

type fakeJournal struct {
	entries []string
	lookups int
}

func (j *fakeJournal) Sent(file, chat string, cycle int) error {
	j.entries = append(j.entries, file)
	return nil
}

func (j *fakeJournal) LastSent(file string) (time.Time, bool) {
	j.lookups++
	for _, e := range j.entries {
		if e == file {
			return time.Unix(0, 0), true
		}
	}
	return time.Time{}, false
}

func names(sends []sent) []string {
	var out []string
	for _, s := range sends {
		out = append(out, s.name)
	}
	return out
}

func TestRunCycleSendsEachFileOnce(t *testing.T) {
	folder := storage.NewInMemoryFS()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, folder.WriteFile(name, []byte(name)))
	}

	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}}
	loop := NewLoop(folder, m, time.Hour, WithRand(rand.New(rand.NewSource(7))))

	n, err := loop.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.ElementsMatch(t, []string{"a", "b", "c"}, names(m.sends))
	for _, s := range m.sends {
		require.Equal(t, "42", s.chat)
	}
}

func TestRunCycleShufflesPerDirectory(t *testing.T) {
	folder := storage.NewInMemoryFS()
	for _, name := range []string{"0", "1", "2", "3", "4", "5", "6", "7"} {
		require.NoError(t, folder.WriteFile(name, nil))
	}

	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}}
	loop := NewLoop(folder, m, time.Hour, WithRand(rand.New(rand.NewSource(1))))

	orders := map[string]bool{}
	for i := 0; i < 5; i++ {
		m.sends = nil
		_, err := loop.RunCycle(context.Background())
		require.NoError(t, err)
		require.Len(t, m.sends, 8)

		key := ""
		for _, n := range names(m.sends) {
			key += n
		}
		orders[key] = true
	}

	// 8! orderings; five cycles landing on one would mean no shuffle
	require.Greater(t, len(orders), 1)
}

func TestRunCycleWalksSubdirectories(t *testing.T) {
	folder := storage.NewInMemoryFS()
	require.NoError(t, folder.WriteFile("top.jpg", nil))
	require.NoError(t, folder.WriteFile("old/nested.png", nil))

	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}}
	j := &fakeJournal{}
	n, err := NewLoop(folder, m, time.Hour, WithJournal(j)).RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// root files first, then sub-directories
	require.Equal(t, []string{"top.jpg", "nested.png"}, names(m.sends))
	require.Equal(t, []string{"top.jpg", "old/nested.png"}, j.entries)
	require.Equal(t, 2, j.lookups)
}

func TestEmptyFolderSleepsImmediately(t *testing.T) {
	folder := storage.NewInMemoryFS()
	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		cancel()
		return ctx.Err()
	}

	err := NewLoop(folder, m, 4*time.Hour, WithSleep(sleep)).Run(ctx)
	require.True(t, IsShutdown(err))
	require.Empty(t, m.sends)
	require.Equal(t, []time.Duration{4 * time.Hour}, slept)
}

func TestChatResolvedOnce(t *testing.T) {
	folder := storage.NewInMemoryFS()
	require.NoError(t, folder.WriteFile("a.jpg", nil))
	require.NoError(t, folder.WriteFile("b.jpg", nil))

	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}}
	loop := NewLoop(folder, m, time.Hour)

	_, err := loop.Prepare(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := loop.RunCycle(context.Background())
		require.NoError(t, err)
	}

	require.Equal(t, 1, m.resolves)
	// every cycle re-sends the unchanged folder
	require.Len(t, m.sends, 6)
}

func TestNoPendingUpdates(t *testing.T) {
	folder := storage.NewInMemoryFS()
	require.NoError(t, folder.WriteFile("a.jpg", nil))

	m := &fakeMessenger{}
	_, err := NewLoop(folder, m, time.Hour).RunCycle(context.Background())
	require.ErrorIs(t, err, messenger.ErrNoPendingUpdates)
	require.Empty(t, m.sends)
}

func TestSendFailureStopsLoop(t *testing.T) {
	folder := storage.NewInMemoryFS()
	require.NoError(t, folder.WriteFile("bad.jpg", nil))

	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}, failOn: "bad.jpg"}
	slept := false
	err := NewLoop(folder, m, time.Hour, WithSleep(func(context.Context, time.Duration) error {
		slept = true
		return nil
	})).Run(context.Background())

	require.EqualError(t, err, "send rejected")
	require.False(t, slept)
}

func TestOversizeFilesAreShrunk(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)), 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))

	folder := storage.NewInMemoryFS()
	require.NoError(t, folder.WriteFile("spacex_0.png", buf.Bytes()))
	require.NoError(t, folder.WriteFile("garbage.png", bytes.Repeat([]byte{1}, 9000)))

	limit := 8000
	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}, limit: limit}
	n, err := NewLoop(folder, m, time.Hour).RunCycle(context.Background())
	require.NoError(t, err)

	// garbage.png cannot be decoded, so it is skipped
	require.Equal(t, 1, n)
	require.Len(t, m.sends, 1)
	require.LessOrEqual(t, m.sends[0].size, limit)
	require.Contains(t, []string{"spacex_0.jpg", "spacex_0.png"}, m.sends[0].name)
}

func TestRunWithNoDelay(t *testing.T) {
	folder := storage.NewInMemoryFS()
	require.NoError(t, folder.WriteFile("a.jpg", nil))
	m := &fakeMessenger{chat: messenger.Chat{ID: "42"}}

	ctx, cancel := context.WithCancel(context.Background())
	cycles := 0
	err := NewLoop(folder, m, 0, WithSleep(func(ctx context.Context, d time.Duration) error {
		cycles++
		if cycles == 3 {
			cancel()
		}
		return ctx.Err()
	})).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, m.sends, 3)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
