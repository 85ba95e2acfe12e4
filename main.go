package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/urfave/cli/v2"

	"github.com/ytget/mgrab/internal/config"
	"github.com/ytget/mgrab/internal/download"
	"github.com/ytget/mgrab/internal/history"
	"github.com/ytget/mgrab/internal/menu"
	"github.com/ytget/mgrab/internal/model"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "mgrab",
		Usage:   "music and video downloader built on yt-dlp",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the preference file",
				Value:   config.DefaultPath(),
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "override the output directory",
			},
			&cli.IntFlag{
				Name:    "parallel",
				Aliases: []string{"p"},
				Usage:   "override the number of parallel downloads",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "audio",
				Usage:     "download one or more tracks as audio",
				ArgsUsage: "URL [URL...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "audio format (mp3/m4a/wav/aac/flac/ogg)"},
					&cli.StringFlag{Name: "proxy", Usage: "proxy URI"},
				},
				Action: func(c *cli.Context) error {
					return runDirect(c, model.KindAudio)
				},
			},
			{
				Name:      "video",
				Usage:     "download one or more videos",
				ArgsUsage: "URL [URL...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "container format (mp4/mkv)"},
					&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Usage: "height ceiling (1080, 720, ...) or best"},
					&cli.BoolFlag{Name: "subs", Usage: "embed subtitles"},
					&cli.StringFlag{Name: "proxy", Usage: "proxy URI"},
				},
				Action: func(c *cli.Context) error {
					kind := model.KindVideo
					if c.Bool("subs") {
						kind = model.KindVideoWithSubs
					}
					return runDirect(c, kind)
				},
			},
			{
				Name:      "subs",
				Usage:     "download subtitles only",
				ArgsUsage: "URL [URL...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "proxy", Usage: "proxy URI"},
				},
				Action: func(c *cli.Context) error {
					return runDirect(c, model.KindSubtitles)
				},
			},
			{
				Name:  "history",
				Usage: "list recent downloads",
				Action: func(c *cli.Context) error {
					return runHistory(c)
				},
			},
		},
		Action: func(c *cli.Context) error {
			return runInteractive(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the preference file, applies CLI overrides and prepares the
// logger and signal-aware context shared by all modes.
func setup(c *cli.Context) (config.Config, *slog.Logger, context.Context, context.CancelFunc, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, logger, nil, nil, err
	}
	if dir := c.String("dir"); dir != "" {
		cfg.OutputDir = dir
	}
	if p := c.Int("parallel"); p > 0 {
		cfg.MaxParallel = p
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	return cfg, logger, ctx, cancel, nil
}

// provisionDelegate lets the library fetch the yt-dlp binary when it is not
// already present; everything after this is delegated to it.
func provisionDelegate(ctx context.Context, logger *slog.Logger) {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		logger.Warn("could not provision yt-dlp binary", "error", err)
	}
}

func openStore(cfg config.Config, logger *slog.Logger) *history.Store {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logger.Warn("download history unavailable", "error", err)
		return nil
	}
	return store
}

func runInteractive(c *cli.Context) error {
	cfg, logger, ctx, cancel, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()
	provisionDelegate(ctx, logger)

	store := openStore(cfg, logger)
	if store != nil {
		defer store.Close()
	}

	m, err := menu.New(cfg, c.String("config"), store, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.Run(ctx)
}

// runDirect is the non-interactive path: download the argument URLs of the
// given kind through the same pool and retry policy the menu uses.
func runDirect(c *cli.Context, kind model.MediaKind) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one URL is required", 1)
	}
	cfg, logger, ctx, cancel, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()
	provisionDelegate(ctx, logger)

	if f := c.String("format"); f != "" {
		switch kind {
		case model.KindAudio:
			cfg.AudioFormat = f
		default:
			cfg.VideoFormat = f
		}
	}
	if q := c.String("quality"); q != "" {
		cfg.Quality = q
	}
	if p := c.String("proxy"); p != "" {
		cfg.Proxy = p
	}

	reqs := make([]model.Request, c.NArg())
	for i, url := range c.Args().Slice() {
		reqs[i] = cfg.Request(kind, url)
	}

	store := openStore(cfg, logger)
	if store != nil {
		defer store.Close()
	}

	service := download.NewService(logger)
	coord := download.NewCoordinator(cfg.MaxParallel, download.Policy{Logger: logger})
	outcomes := coord.Run(ctx, reqs, service.Fetch)

	if store != nil {
		if err := store.RecordAll(outcomes); err != nil {
			logger.Warn("failed to record history", "error", err)
		}
	}

	failed := 0
	for _, o := range outcomes {
		fmt.Println(menu.FormatOutcome(o))
		if !o.OK() {
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d downloads failed", failed, len(outcomes)), 1)
	}
	return nil
}

func runHistory(c *cli.Context) error {
	cfg, logger, _, cancel, err := setup(c)
	if err != nil {
		return err
	}
	defer cancel()

	store := openStore(cfg, logger)
	if store == nil {
		return cli.Exit("download history unavailable", 1)
	}
	defer store.Close()

	entries, err := store.Recent(30)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No downloads recorded yet.")
		return nil
	}
	for _, e := range entries {
		status := "ok"
		if !e.OK() {
			status = e.Status
		}
		fmt.Printf("%s  [%s/%s] %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Kind, status, e.URL)
	}
	return nil
}
