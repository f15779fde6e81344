package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChunkMaterializer = (*Materializer)(nil)

const (
	// MaxClipSeconds caps the length of a rendered clip.
	MaxClipSeconds = 60.0

	defaultTimeout = 5 * time.Minute
	overlayFPS     = 25
	subtitleStyle  = "FontSize=24,Alignment=2"
	watchURLPrefix = "https://www.youtube.com/watch?v="
)

// runFunc executes an external command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config holds configuration for the materializer
type Config struct {
	// ChunkDir is where downloaded chunks and final clips are written.
	ChunkDir string

	// OverlayDir holds .mp4 files stacked under the clip. Optional.
	OverlayDir string

	FFmpegPath  string
	FFprobePath string
	YtDlpPath   string

	// Timeout bounds each external command. Defaults to 5 minutes.
	Timeout time.Duration

	Logger *slog.Logger
}

// Materializer renders video ranges into clips using yt-dlp and ffmpeg.
type Materializer struct {
	chunkDir   string
	overlayDir string
	ffmpeg     string
	ffprobe    string
	ytdlp      string
	timeout    time.Duration
	run        runFunc
	logger     *slog.Logger
}

// NewMaterializer creates a materializer. ChunkDir is required.
func NewMaterializer(cfg Config) (*Materializer, error) {
	if cfg.ChunkDir == "" {
		return nil, fmt.Errorf("%w: chunk dir is required", domain.ErrInvalidInput)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Materializer{
		chunkDir:   cfg.ChunkDir,
		overlayDir: cfg.OverlayDir,
		ffmpeg:     orDefault(cfg.FFmpegPath, "ffmpeg"),
		ffprobe:    orDefault(cfg.FFprobePath, "ffprobe"),
		ytdlp:      orDefault(cfg.YtDlpPath, "yt-dlp"),
		timeout:    timeout,
		run:        execRun,
		logger:     logger,
	}, nil
}

// Render downloads [start, end) of the video and burns the subtitles into it.
// The range is clamped to MaxClipSeconds. An existing final clip is reused.
func (m *Materializer) Render(ctx context.Context, videoID string, start, end float64, subtitles []domain.SubtitleEntry) (string, error) {
	if videoID == "" || end <= start {
		return "", fmt.Errorf("%w: invalid range %s [%.3f, %.3f)", domain.ErrRender, videoID, start, end)
	}
	if end-start > MaxClipSeconds {
		end = start + MaxClipSeconds
	}
	length := end - start

	dir := filepath.Join(m.chunkDir, videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create chunk dir: %v", domain.ErrRender, err)
	}
	tag := fmt.Sprintf("%.3f_%.3f", start, end)
	chunkPath := filepath.Join(dir, "chunk_"+tag+".mp4")
	finalPath := filepath.Join(dir, "final_"+tag+".mp4")
	srtPath := filepath.Join(dir, "subs_"+tag+".srt")

	if fileExists(finalPath) {
		m.logger.Debug("clip already rendered", "video_id", videoID, "path", finalPath)
		return finalPath, nil
	}

	if !fileExists(chunkPath) {
		if err := m.download(ctx, videoID, start, end, chunkPath); err != nil {
			return "", fmt.Errorf("%w: download %s: %v", domain.ErrRender, videoID, err)
		}
	}

	subs := clampSubtitles(subtitles, length)
	overlay := m.pickOverlay(videoID, start)
	if overlay == "" && len(subs) == 0 {
		return chunkPath, nil
	}
	if len(subs) > 0 {
		if err := writeSRT(srtPath, subs); err != nil {
			return "", fmt.Errorf("%w: write subtitles: %v", domain.ErrRender, err)
		}
	} else {
		srtPath = ""
	}

	if err := m.compose(ctx, chunkPath, overlay, srtPath, finalPath); err != nil {
		// The raw chunk is still a usable clip
		m.logger.Warn("compose failed, returning raw chunk",
			"video_id", videoID,
			"start", start,
			"end", end,
			"error", err,
		)
		return chunkPath, nil
	}

	m.cleanup(chunkPath, srtPath)
	m.logger.Info("clip rendered", "video_id", videoID, "path", finalPath, "overlay", overlay != "")
	return finalPath, nil
}

func (m *Materializer) download(ctx context.Context, videoID string, start, end float64, out string) error {
	args := []string{
		"--quiet", "--no-warnings", "--no-overwrites",
		"-f", "best[ext=mp4]/best",
		"--download-sections", fmt.Sprintf("*%.3f-%.3f", start, end),
		"--force-keyframes-at-cuts",
		"-o", out,
		watchURLPrefix + videoID,
	}
	if _, err := m.exec(ctx, m.ytdlp, args...); err != nil {
		return err
	}
	if !fileExists(out) {
		return errors.New("yt-dlp produced no output")
	}
	return nil
}

// compose runs ffmpeg over the chunk, stacking the overlay when one is set
// and burning the subtitles when srtPath is not empty.
func (m *Materializer) compose(ctx context.Context, chunkPath, overlay, srtPath, out string) error {
	length, err := m.probeDuration(ctx, chunkPath)
	if err != nil {
		return err
	}
	if length > MaxClipSeconds {
		length = MaxClipSeconds
	}

	args := []string{"-y", "-i", chunkPath}
	if overlay != "" {
		overlayLen, err := m.probeDuration(ctx, overlay)
		if err != nil {
			return err
		}
		args = append(args, "-i", overlay,
			"-filter_complex", stackFilter(length, overlayLen, srtPath),
			"-map", "[outv]", "-map", "0:a?")
	} else {
		args = append(args, "-vf", subtitlesFilter(srtPath))
	}
	d := formatSeconds(length)
	args = append(args, "-af", "atrim=0:"+d, "-t", d, out)

	if _, err := m.exec(ctx, m.ffmpeg, args...); err != nil {
		return err
	}
	if !fileExists(out) {
		return errors.New("ffmpeg produced no output")
	}
	return nil
}

func (m *Materializer) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := m.exec(ctx, m.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration of %s: %w", path, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration for %s", path)
	}
	return d, nil
}

// pickOverlay chooses an overlay clip for the video. The choice is stable for
// a given video and start so re-renders produce the same output.
func (m *Materializer) pickOverlay(videoID string, start float64) string {
	if m.overlayDir == "" {
		return ""
	}
	entries, err := os.ReadDir(m.overlayDir)
	if err != nil {
		m.logger.Warn("failed to read overlay dir", "dir", m.overlayDir, "error", err)
		return ""
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return ""
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%.3f", videoID, start)
	return filepath.Join(m.overlayDir, files[int(h.Sum32()%uint32(len(files)))])
}

func (m *Materializer) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove intermediate file", "path", p, "error", err)
		}
	}
}

func (m *Materializer) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.run(ctx, name, args...)
}

// stackFilter builds the filter graph that puts the clip on top of a looped
// overlay and optionally burns subtitles into the result. The output pad is
// always [outv].
func stackFilter(length, overlayLen float64, srtPath string) string {
	d := formatSeconds(length)
	loops := int(length / overlayLen)
	if loops < 1 {
		loops = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[0:v]setpts=PTS-STARTPTS,trim=0:%s[top];", d)
	fmt.Fprintf(&b, "[1:v]loop=%d:size=%d:start=0,setpts=PTS-STARTPTS,trim=0:%s[bottom];",
		loops, int(length*overlayFPS), d)
	if srtPath == "" {
		b.WriteString("[top][bottom]vstack=inputs=2[outv]")
		return b.String()
	}
	b.WriteString("[top][bottom]vstack=inputs=2[v];")
	fmt.Fprintf(&b, "[v]%s[outv]", subtitlesFilter(srtPath))
	return b.String()
}

func subtitlesFilter(srtPath string) string {
	return fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterPath(srtPath), subtitleStyle)
}

// escapeFilterPath quotes characters that ffmpeg's filter parser treats as
// separators.
func escapeFilterPath(p string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`)
	return r.Replace(p)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return stdout.Bytes(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
