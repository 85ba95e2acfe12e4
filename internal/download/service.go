package download

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytget/mgrab/internal/model"
	"github.com/ytget/mgrab/internal/platform"
)

// Delegate tuning constants
const (
	filenameTemplate        = "%(title)s.%(ext)s"
	indexedFilenameTemplate = "%(playlist_index)s - %(title)s.%(ext)s"
	audioQuality            = "320"
	subtitleFormat          = "srt"
	defaultSubLang          = "en"
	progressInterval        = 500 * time.Millisecond
)

// Source extensions yt-dlp may report before audio post-processing replaces
// them with the target format.
var audioSourceExtensions = []string{".webm", ".m4a", ".opus"}

// Service is the real perform implementation: it translates a Request into a
// yt-dlp invocation and reports the produced file path. All network and
// extraction work happens inside the delegate binary.
type Service struct {
	logger     *slog.Logger
	onProgress func(model.Progress)
	onComplete func(path string, meta model.Metadata)
}

// NewService creates a delegate service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// SetProgressCallback registers a callback for transfer progress snapshots.
func (s *Service) SetProgressCallback(fn func(model.Progress)) {
	s.onProgress = fn
}

// SetCompleteCallback registers a callback invoked after a successful fetch
// with the output path and the media metadata the delegate resolved. Tagging
// hangs off this hook; its failure must never turn a success into a failure.
func (s *Service) SetCompleteCallback(fn func(path string, meta model.Metadata)) {
	s.onComplete = fn
}

// Fetch downloads whatever req describes. It satisfies PerformFunc.
func (s *Service) Fetch(ctx context.Context, req model.Request) (string, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return "", Fatal(err)
	}
	if err := platform.EnsureDir(req.OutputDir); err != nil {
		return "", Fatal(fmt.Errorf("output directory: %w", err))
	}

	dl, err := s.buildCommand(req)
	if err != nil {
		return "", Fatal(err)
	}

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// The delegate treats download errors as transient by default:
		// network drops and extraction hiccups are the common case and
		// are expected to self-resolve.
		return "", Recoverable(err)
	}

	path, meta := s.resolveResult(req, result)
	if s.onComplete != nil {
		s.onComplete(path, meta)
	}
	return path, nil
}

// buildCommand assembles the yt-dlp option set for one request. This is the
// single place every kind funnels through.
func (s *Service) buildCommand(req model.Request) (*ytdlp.Command, error) {
	tmpl := filenameTemplate
	if req.IndexedNames || req.Kind == model.KindPlaylist {
		tmpl = indexedFilenameTemplate
	}

	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(req.OutputDir, tmpl))

	if req.Proxy != "" {
		dl.Proxy(req.Proxy)
	}
	if req.RateLimit != "" {
		dl.LimitRate(req.RateLimit)
	}

	switch req.Kind {
	case model.KindAudio, model.KindPlaylist:
		dl.ExtractAudio().
			AudioFormat(req.Format).
			AudioQuality(audioQuality)

	case model.KindVideo:
		dl.Format(videoFormatSelector(req.Quality)).
			MergeOutputFormat(req.Format)

	case model.KindVideoWithSubs:
		dl.Format(videoFormatSelector(req.Quality)).
			MergeOutputFormat(req.Format).
			WriteSubs().
			SubLangs(subLangs(req.SubLangs)).
			EmbedSubs()

	case model.KindSubtitles:
		dl.SkipDownload().
			WriteSubs().
			WriteAutoSubs().
			SubFormat(subtitleFormat).
			SubLangs(subLangs(req.SubLangs))

	case model.KindPreview:
		dl.SkipDownload()

	default:
		return nil, fmt.Errorf("unknown media kind: %q", req.Kind)
	}

	if s.onProgress != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			s.onProgress(snapshotProgress(req.URL, update))
		})
	}

	return dl, nil
}

// resolveResult extracts the output path and media metadata from a finished
// delegate run.
func (s *Service) resolveResult(req model.Request, result *ytdlp.Result) (string, model.Metadata) {
	var path string
	var meta model.Metadata

	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		s.logger.Warn("delegate returned no extraction info", "url", req.URL, "error", err)
		return "", meta
	}

	first := info[0]
	if first.Filename != nil {
		path = *first.Filename
	}
	meta = model.Metadata{
		Title:  deref(first.Title),
		Artist: deref(first.Artist),
		Album:  deref(first.Album),
	}
	if meta.Artist == "" {
		meta.Artist = deref(first.Uploader)
	}

	switch req.Kind {
	case model.KindAudio, model.KindPlaylist:
		path = fixupAudioPath(path, req.Format)
	}
	if abs, err := filepath.Abs(path); err == nil && path != "" {
		path = abs
	}
	return path, meta
}

// videoFormatSelector builds the yt-dlp format expression for a quality
// ceiling like "1080", or the plain best-quality selector.
func videoFormatSelector(quality string) string {
	if quality == "" || quality == model.DefaultQuality {
		return "bestvideo+bestaudio/best"
	}
	return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", quality, quality)
}

// fixupAudioPath rewrites the reported filename to the post-processed audio
// extension. yt-dlp reports the source container before FFmpegExtractAudio
// converts it.
func fixupAudioPath(path, format string) string {
	if path == "" || format == "" {
		return path
	}
	for _, ext := range audioSourceExtensions {
		if strings.HasSuffix(path, ext) {
			return strings.TrimSuffix(path, ext) + "." + format
		}
	}
	return path
}

func subLangs(langs []string) string {
	if len(langs) == 0 {
		return defaultSubLang
	}
	return strings.Join(langs, ",")
}

func snapshotProgress(url string, update ytdlp.ProgressUpdate) model.Progress {
	p := model.Progress{URL: url, ETASec: -1}

	if update.TotalBytes > 0 {
		p.Percent = int(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100)
	}
	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed.Seconds() > 0 {
			bytesPerSecond := float64(update.DownloadedBytes) / elapsed.Seconds()
			p.Speed = fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
		}
	}
	if eta := update.ETA(); eta > 0 {
		p.ETASec = int(eta.Seconds())
	}
	if update.Info != nil && update.Info.Title != nil {
		p.Title = *update.Info.Title
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
