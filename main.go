package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Alextopher/space-photos-bot/internal/config"
	"github.com/Alextopher/space-photos-bot/internal/delivery"
	"github.com/Alextopher/space-photos-bot/internal/download"
	"github.com/Alextopher/space-photos-bot/internal/journal"
	"github.com/Alextopher/space-photos-bot/internal/messenger"
	"github.com/Alextopher/space-photos-bot/internal/nasa"
	"github.com/Alextopher/space-photos-bot/internal/spacex"
	"github.com/Alextopher/space-photos-bot/internal/storage"
	"github.com/Alextopher/space-photos-bot/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil && !delivery.IsShutdown(err) {
		logrus.Fatal(err)
	}
}

// app carries what every subcommand needs after flags and config are loaded.
type app struct {
	envFile string
	cfg     *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "space-photos-bot",
		Short:         "Download SpaceX and NASA imagery and post it to a chat, forever",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), true, true)
		},
	}

	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load before reading the environment")

	cmd.AddCommand(&cobra.Command{
		Use:   "fetch",
		Short: "Download images once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), true, false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "deliver",
		Short: "Post the images already on disk, forever",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), false, true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Print the download and delivery journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.history(cmd.OutOrStdout())
		},
	})

	return cmd
}

func setupLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logrus.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(new(logrus.JSONFormatter))
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

// run executes the fetch phase, the delivery loop, or both. When both run,
// the destination chat is resolved before anything is downloaded.
func (a *app) run(ctx context.Context, fetch, deliver bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := a.cfg

	if fetch {
		if err := cfg.ValidateFetch(); err != nil {
			return err
		}
	}
	if deliver {
		if err := cfg.ValidateDelivery(); err != nil {
			return err
		}
	}

	client := transport.NewClient(cfg.HTTPTimeout)

	folder, err := storage.NewLocalFS(cfg.NameFolder)
	if err != nil {
		return fmt.Errorf("creating %s: %w", cfg.NameFolder, err)
	}
	logrus.WithField("folder", folder.Root()).Info("image folder ready")

	j, err := openJournal(cfg.JournalPath)
	if err != nil {
		return err
	}

	var loop *delivery.Loop
	if deliver {
		m, err := messenger.New(cfg, client)
		if err != nil {
			return err
		}

		var opts []delivery.Option
		if j != nil {
			opts = append(opts, delivery.WithJournal(j))
		}
		loop = delivery.NewLoop(folder, m, cfg.Delay(), opts...)

		if _, err := loop.Prepare(ctx); err != nil {
			return err
		}
	}

	if fetch {
		var recorder download.Recorder
		if j != nil {
			recorder = j
		}
		if _, err := fetchAll(ctx, cfg, download.NewDownloader(client, folder, recorder)); err != nil {
			return err
		}
	}

	if loop == nil {
		return nil
	}
	return loop.Run(ctx)
}

// fetchAll runs the SpaceX, APOD and EPIC fetchers in that order.
func fetchAll(ctx context.Context, cfg *config.Config, d *download.Downloader) (int, error) {
	apod, err := nasa.NewAPOD(cfg.NASAAPIURL, cfg.NASAToken, cfg.StartDateNASA, cfg.EndDateNASA)
	if err != nil {
		return 0, err
	}

	total, err := download.FetchAll(ctx, d,
		spacex.NewFetcher(cfg.SpaceXAPIURL),
		apod,
		nasa.NewEPIC(cfg.NASAAPIURL, cfg.NASAToken),
	)
	if err != nil {
		return total, err
	}

	logrus.WithField("images", total).Info("fetch phase complete")
	return total, nil
}

func openJournal(path string) (*journal.Journal, error) {
	if path == "" {
		return nil, nil
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	return j, nil
}

func (a *app) history(w io.Writer) error {
	j, err := openJournal(a.cfg.JournalPath)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("JOURNAL_PATH is empty, no journal is kept")
	}

	return printHistory(w, j)
}

func printHistory(w io.Writer, j *journal.Journal) error {
	err := j.View(func(e journal.Event) error {
		var err error
		switch e.Type {
		case journal.EventTypeFetched:
			_, err = fmt.Fprintf(w, "%d\t%s\tfetched\t%s\t%s\n", e.Seq, e.Time.Format("2006-01-02 15:04:05"), e.Fetched.File, e.Fetched.Source)
		case journal.EventTypeSent:
			_, err = fmt.Fprintf(w, "%d\t%s\tsent\t%s\tchat=%s cycle=%d\n", e.Seq, e.Time.Format("2006-01-02 15:04:05"), e.Sent.File, e.Sent.Chat, e.Sent.Cycle)
		}
		return err
	})
	if err != nil {
		return err
	}
	size, err := j.Size()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d events\n", size)
	return err
}
