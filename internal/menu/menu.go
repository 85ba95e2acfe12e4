// Package menu implements the interactive front end: a numbered text menu
// that collects parameters through prompts and dispatches to the download
// pipeline. All user-facing text lives here.
package menu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ytget/mgrab/internal/config"
	"github.com/ytget/mgrab/internal/download"
	"github.com/ytget/mgrab/internal/history"
	"github.com/ytget/mgrab/internal/model"
	"github.com/ytget/mgrab/internal/platform"
	"github.com/ytget/mgrab/internal/tag"
	"github.com/ytget/mgrab/internal/transcode"
)

const banner = `
mgrab — music and video downloader
  1. Download a single track
  2. Download a playlist
  3. Download a video
  4. Download subtitles
  5. Download multiple tracks in parallel
  6. Preview a link
  7. Show download history
  8. Convert a downloaded file
  9. Settings
  0. Exit
`

const historyPageSize = 15

// Menu drives the interactive session.
type Menu struct {
	rl         *readline.Instance
	out        io.Writer
	logger     *slog.Logger
	cfg        config.Config
	cfgPath    string
	service    *download.Service
	coord      *download.Coordinator
	parser     *platform.PlaylistParser
	transcoder *transcode.Service
	store      *history.Store // nil when history is unavailable
}

// New wires the interactive menu. The store may be nil; history recording is
// then skipped.
func New(cfg config.Config, cfgPath string, store *history.Store, logger *slog.Logger) (*Menu, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rl, err := readline.New("> ")
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}

	m := &Menu{
		rl:         rl,
		out:        os.Stdout,
		logger:     logger,
		cfg:        cfg,
		cfgPath:    cfgPath,
		parser:     platform.NewPlaylistParser(),
		transcoder: transcode.NewService(logger),
		store:      store,
	}

	svc := download.NewService(logger)
	svc.SetProgressCallback(m.showProgress)
	svc.SetCompleteCallback(m.tagCompleted)
	m.service = svc
	m.coord = download.NewCoordinator(cfg.MaxParallel, download.Policy{Logger: logger})

	return m, nil
}

// Close releases the terminal.
func (m *Menu) Close() error {
	return m.rl.Close()
}

// Run loops the menu until the user exits or the context is canceled.
func (m *Menu) Run(ctx context.Context) error {
	if !platform.HasFFmpeg() {
		fmt.Fprintf(m.out, "Warning: ffmpeg not found. Audio extraction and conversion will fail.\nInstall it with: %s\n", platform.FFmpegInstallHint())
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(m.out, banner)

		choice, err := m.prompt("Enter your choice", "")
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(m.out, "Exiting...")
				return nil
			}
			return err
		}

		switch strings.TrimSpace(choice) {
		case "1":
			m.downloadSingle(ctx, model.KindAudio)
		case "2":
			m.downloadPlaylist(ctx)
		case "3":
			m.downloadSingle(ctx, model.KindVideo)
		case "4":
			m.downloadSingle(ctx, model.KindSubtitles)
		case "5":
			m.downloadBatch(ctx)
		case "6":
			m.downloadSingle(ctx, model.KindPreview)
		case "7":
			m.showHistory()
		case "8":
			m.convertFile(ctx)
		case "9":
			m.editSettings()
		case "0", "q", "exit":
			fmt.Fprintln(m.out, "Exiting...")
			return nil
		default:
			fmt.Fprintln(m.out, "Invalid choice. Please try again.")
		}
	}
}

// downloadSingle prompts for one URL plus per-kind options and runs the
// request through the retry policy.
func (m *Menu) downloadSingle(ctx context.Context, kind model.MediaKind) {
	url, err := m.prompt("Enter the URL", "")
	if err != nil || strings.TrimSpace(url) == "" {
		fmt.Fprintln(m.out, "No URL entered.")
		return
	}

	req := m.cfg.Request(kind, strings.TrimSpace(url))
	req, ok := m.promptOptions(req)
	if !ok {
		return
	}

	outcome := download.Policy{Logger: m.logger}.Execute(ctx, req, m.service.Fetch)
	m.record(outcome)
	m.report(outcome)
}

// downloadPlaylist parses the playlist and fans the entries out over the
// worker pool so each track gets its own retry budget and outcome.
func (m *Menu) downloadPlaylist(ctx context.Context) {
	url, err := m.prompt("Enter the playlist URL", "")
	if err != nil || strings.TrimSpace(url) == "" {
		fmt.Fprintln(m.out, "No URL entered.")
		return
	}
	url = strings.TrimSpace(url)

	base := m.cfg.Request(model.KindAudio, url)
	base, ok := m.promptOptions(base)
	if !ok {
		return
	}

	playlist, err := m.parser.Parse(ctx, url)
	if err != nil {
		// Not every playlist URL is enumerable; fall back to handing the
		// whole thing to the delegate as one task.
		m.logger.Warn("playlist parse failed, delegating whole URL", "error", err)
		req := base
		req.Kind = model.KindPlaylist
		outcome := download.Policy{Logger: m.logger}.Execute(ctx, req, m.service.Fetch)
		m.record(outcome)
		m.report(outcome)
		return
	}

	fmt.Fprintf(m.out, "Playlist %q: %d tracks\n", playlist.Title, len(playlist.Entries))
	outcomes := m.coord.Run(ctx, playlist.Requests(base), m.service.Fetch)
	m.recordAll(outcomes)
	m.reportAll(outcomes)
}

// downloadBatch reads a URL list and runs it through the bounded pool.
func (m *Menu) downloadBatch(ctx context.Context) {
	line, err := m.prompt("Enter the URLs (separated by space or comma)", "")
	if err != nil {
		return
	}
	urls := ParseURLList(line)
	if len(urls) == 0 {
		fmt.Fprintln(m.out, "No URLs entered.")
		return
	}

	base := m.cfg.Request(model.KindAudio, urls[0])
	base, ok := m.promptOptions(base)
	if !ok {
		return
	}

	reqs := make([]model.Request, len(urls))
	for i, u := range urls {
		req := base
		req.URL = u
		reqs[i] = req
	}

	fmt.Fprintf(m.out, "Downloading %d tracks, %d at a time...\n", len(reqs), m.coord.Limit())
	outcomes := m.coord.Run(ctx, reqs, m.service.Fetch)
	m.recordAll(outcomes)
	m.reportAll(outcomes)
}

// promptOptions collects the optional parameters shared by all kinds. The
// bool result is false when input was interrupted.
func (m *Menu) promptOptions(req model.Request) (model.Request, bool) {
	var err error

	switch req.Kind {
	case model.KindAudio, model.KindPlaylist:
		req.Format, err = m.prompt("Output format (mp3/m4a/wav/aac/flac/ogg)", req.Format)
	case model.KindVideo, model.KindVideoWithSubs:
		if req.Format, err = m.prompt("Output format (mp4/mkv)", req.Format); err == nil {
			req.Quality, err = m.prompt("Video quality (e.g. 1080, 720, 480 or best)", req.Quality)
		}
		if err == nil && req.Kind == model.KindVideo {
			var embed string
			embed, err = m.prompt("Embed subtitles? (y/N)", "n")
			if strings.EqualFold(strings.TrimSpace(embed), "y") {
				req.Kind = model.KindVideoWithSubs
			}
		}
	case model.KindPreview:
		// No options, metadata lookup only.
		return req, err == nil
	}
	if err != nil {
		return req, false
	}

	if req.OutputDir, err = m.prompt("Output directory", req.OutputDir); err != nil {
		return req, false
	}
	if req.Proxy, err = m.prompt("Proxy (http://... or socks5://..., blank for none)", req.Proxy); err != nil {
		return req, false
	}
	return req, true
}

// showHistory lists recent downloads from the store.
func (m *Menu) showHistory() {
	if m.store == nil {
		fmt.Fprintln(m.out, "History is unavailable.")
		return
	}
	entries, err := m.store.Recent(historyPageSize)
	if err != nil {
		fmt.Fprintf(m.out, "Failed to read history: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(m.out, "No downloads recorded yet.")
		return
	}
	for _, e := range entries {
		mark := "ok"
		detail := e.Path
		if !e.OK() {
			mark = e.Status
			detail = e.Message
		}
		fmt.Fprintf(m.out, "%s  [%s/%s] %s\n    %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Kind, mark, e.URL, detail)
	}
}

// convertFile prompts for a local file and target format and shells out to
// ffmpeg.
func (m *Menu) convertFile(ctx context.Context) {
	path, err := m.prompt("Path of the file to convert", "")
	if err != nil || strings.TrimSpace(path) == "" {
		return
	}
	format, err := m.prompt("Target format (mp4/mkv/mp3/m4a/flac/ogg)", "mp4")
	if err != nil {
		return
	}

	m.transcoder.SetProgressCallback(func(percent int) {
		fmt.Fprintf(m.out, "\rConverting... %3d%%", percent)
	})
	out, err := m.transcoder.Convert(ctx, strings.TrimSpace(path), strings.TrimSpace(format))
	fmt.Fprintln(m.out)
	if err != nil {
		fmt.Fprintf(m.out, "Conversion failed: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Converted successfully! File path: %s\n", out)
}

// editSettings walks the persisted preferences and saves changes.
func (m *Menu) editSettings() {
	cfg := m.cfg
	var err error

	if cfg.OutputDir, err = m.prompt("Default output directory", cfg.OutputDir); err != nil {
		return
	}
	if cfg.AudioFormat, err = m.prompt("Default audio format", cfg.AudioFormat); err != nil {
		return
	}
	if cfg.VideoFormat, err = m.prompt("Default video format", cfg.VideoFormat); err != nil {
		return
	}
	if cfg.Quality, err = m.prompt("Default video quality", cfg.Quality); err != nil {
		return
	}
	if cfg.Proxy, err = m.prompt("Default proxy (blank for none)", cfg.Proxy); err != nil {
		return
	}
	parallel, err := m.prompt("Parallel downloads (1-10)", strconv.Itoa(cfg.MaxParallel))
	if err != nil {
		return
	}
	if n, convErr := strconv.Atoi(strings.TrimSpace(parallel)); convErr == nil {
		cfg.MaxParallel = n
	}
	retries, err := m.prompt("Retry attempts per download", strconv.Itoa(cfg.Retries))
	if err != nil {
		return
	}
	if n, convErr := strconv.Atoi(strings.TrimSpace(retries)); convErr == nil {
		cfg.Retries = n
	}

	if err := config.Save(m.cfgPath, cfg); err != nil {
		fmt.Fprintf(m.out, "Failed to save settings: %v\n", err)
		return
	}
	m.cfg = cfg
	m.coord = download.NewCoordinator(cfg.MaxParallel, download.Policy{Logger: m.logger})
	fmt.Fprintln(m.out, "Settings saved.")
}

// prompt asks one question, returning def when the answer is blank.
func (m *Menu) prompt(label, def string) (string, error) {
	if def != "" {
		m.rl.SetPrompt(fmt.Sprintf("%s [%s]: ", label, def))
	} else {
		m.rl.SetPrompt(label + ": ")
	}
	line, err := m.rl.Readline()
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

// showProgress renders delegate transfer progress on one line.
func (m *Menu) showProgress(p model.Progress) {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	if len(title) > 40 {
		title = title[:37] + "..."
	}
	fmt.Fprintf(m.out, "\r%3d%%  %-8s  ETA %-8s  %s", p.Percent, p.Speed, p.ETAString(), title)
}

// tagCompleted attaches metadata to finished audio files. Tagging failure is
// logged and swallowed: the download already succeeded.
func (m *Menu) tagCompleted(path string, meta model.Metadata) {
	if path == "" || !tag.Taggable(path) {
		return
	}
	if err := tag.Apply(path, meta); err != nil {
		m.logger.Warn("failed to tag file", "path", path, "error", err)
	}
}

func (m *Menu) record(outcome model.Outcome) {
	if m.store == nil {
		return
	}
	if err := m.store.Record(outcome); err != nil {
		m.logger.Warn("failed to record history", "error", err)
	}
}

func (m *Menu) recordAll(outcomes []model.Outcome) {
	if m.store == nil {
		return
	}
	if err := m.store.RecordAll(outcomes); err != nil {
		m.logger.Warn("failed to record history", "error", err)
	}
}

// report prints the terminal outcome of one task.
func (m *Menu) report(outcome model.Outcome) {
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, FormatOutcome(outcome))
}

// reportAll prints per-task outcomes and an aggregate line.
func (m *Menu) reportAll(outcomes []model.Outcome) {
	fmt.Fprintln(m.out)
	ok := 0
	for _, o := range outcomes {
		fmt.Fprintln(m.out, FormatOutcome(o))
		if o.OK() {
			ok++
		}
	}
	fmt.Fprintf(m.out, "Done: %d of %d succeeded.\n", ok, len(outcomes))
}

// FormatOutcome renders one outcome as a single status line.
func FormatOutcome(o model.Outcome) string {
	if o.OK() {
		if o.Path == "" {
			return fmt.Sprintf("  ok    %s", o.URL)
		}
		return fmt.Sprintf("  ok    %s -> %s", o.URL, o.Path)
	}
	return fmt.Sprintf("  FAIL  %s (%s after %d attempt(s): %s)", o.URL, o.Reason, o.Attempts, o.Message)
}

// ParseURLList splits user input into URLs, accepting spaces and commas as
// separators.
func ParseURLList(line string) []string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	urls := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			urls = append(urls, f)
		}
	}
	return urls
}
