package delivery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alextopher/space-photos-bot/internal/imaging"
	"github.com/Alextopher/space-photos-bot/internal/messenger"
	"github.com/Alextopher/space-photos-bot/internal/storage"
)

// Journal records deliveries.
type Journal interface {
	Sent(file, chat string, cycle int) error
	LastSent(file string) (time.Time, bool)
}

// Loop posts every file in the folder to a chat, sleeps, and starts over.
// Files are never marked as done: each cycle re-sends everything on disk.
type Loop struct {
	folder    storage.FS
	messenger messenger.Messenger
	journal   Journal
	delay     time.Duration

	rand  *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error

	chat     messenger.Chat
	resolved bool
	cycle    int
}

// Option configures a Loop.
type Option func(*Loop)

// WithJournal records every successful send.
func WithJournal(j Journal) Option {
	return func(l *Loop) { l.journal = j }
}

// WithRand fixes the shuffle source.
func WithRand(r *rand.Rand) Option {
	return func(l *Loop) { l.rand = r }
}

// WithSleep replaces the pause between cycles.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.sleep = sleep }
}

// NewLoop creates a delivery loop pausing delay between cycles.
func NewLoop(folder storage.FS, m messenger.Messenger, delay time.Duration, opts ...Option) *Loop {
	l := &Loop{
		folder:    folder,
		messenger: m,
		delay:     delay,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Prepare resolves the destination chat. It is cached for the lifetime of
// the loop, so later cycles never query the messenger again.
func (l *Loop) Prepare(ctx context.Context) (messenger.Chat, error) {
	if l.resolved {
		return l.chat, nil
	}

	chat, err := l.messenger.Resolve(ctx)
	if err != nil {
		return messenger.Chat{}, fmt.Errorf("resolving destination chat: %w", err)
	}

	l.chat, l.resolved = chat, true
	logrus.WithField("chat", chat.String()).Info("destination chat resolved")
	return chat, nil
}

// RunCycle walks the folder once and sends every file, shuffling the files
// of each directory. It returns the number of files sent.
func (l *Loop) RunCycle(ctx context.Context) (int, error) {
	chat, err := l.Prepare(ctx)
	if err != nil {
		return 0, err
	}

	l.cycle++
	log := logrus.WithField("cycle", l.cycle)

	sent := 0
	err = l.folder.Walk(func(dir string, files []string) error {
		l.rand.Shuffle(len(files), func(i, j int) {
			files[i], files[j] = files[j], files[i]
		})

		for _, name := range files {
			file := path.Join(dir, name)
			ok, err := l.send(ctx, chat, file)
			if err != nil {
				return err
			}
			if ok {
				sent++
			}
		}
		return nil
	})
	if err != nil {
		return sent, err
	}

	log.WithField("sent", sent).Info("delivery cycle finished")
	return sent, nil
}

// send uploads one file. Files over the messenger's upload limit are shrunk;
// those that cannot be shrunk are skipped and reported as not sent.
func (l *Loop) send(ctx context.Context, chat messenger.Chat, file string) (bool, error) {
	data, err := l.folder.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", file, err)
	}

	log := logrus.WithField("file", file)
	if l.journal != nil {
		if last, ok := l.journal.LastSent(file); ok {
			log = log.WithField("last_sent", last.Format(time.RFC3339))
		}
	}

	name := path.Base(file)
	if limit := l.messenger.MaxUploadBytes(); limit > 0 && len(data) > limit {
		shrunk, ext, err := imaging.Fit(data, limit)
		if err != nil {
			log.WithError(err).WithField("bytes", len(data)).Warn("file exceeds upload limit, skipping")
			return false, nil
		}
		data = shrunk
		name = strings.TrimSuffix(name, path.Ext(name)) + ext
	}

	if err := l.messenger.SendDocument(ctx, chat, name, data); err != nil {
		return false, err
	}

	log.WithField("chat", chat.ID).Info("file sent")

	if l.journal != nil {
		if err := l.journal.Sent(file, chat.ID, l.cycle); err != nil {
			logrus.WithError(err).Warn("failed to record delivery in journal")
		}
	}
	return true, nil
}

// Run alternates RunCycle and the configured pause until ctx is cancelled
// or a cycle fails.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if _, err := l.RunCycle(ctx); err != nil {
			return err
		}

		logrus.WithField("delay", l.delay).Info("sleeping until next cycle")
		if err := l.sleep(ctx, l.delay); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsShutdown reports whether err only means the loop was asked to stop.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
