package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

type call struct {
	name string
	args []string
}

// fakeRunner stands in for yt-dlp, ffprobe and ffmpeg. Download and encode
// calls create their output file so the materializer sees a result.
type fakeRunner struct {
	mu         sync.Mutex
	calls      []call
	duration   string
	downloadFn func() error
	ffmpegErr  error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{name: name, args: args})
	f.mu.Unlock()

	switch name {
	case "yt-dlp":
		if f.downloadFn != nil {
			if err := f.downloadFn(); err != nil {
				return nil, err
			}
		}
		return nil, os.WriteFile(argAfter(args, "-o"), []byte("chunk"), 0o644)
	case "ffprobe":
		if f.duration == "" {
			return []byte("30.000000\n"), nil
		}
		return []byte(f.duration), nil
	case "ffmpeg":
		if f.ffmpegErr != nil {
			return nil, f.ffmpegErr
		}
		return nil, os.WriteFile(args[len(args)-1], []byte("final"), 0o644)
	}
	return nil, errors.New("unexpected command " + name)
}

func (f *fakeRunner) callsTo(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestMaterializer(t *testing.T, overlayDir string) (*Materializer, *fakeRunner) {
	t.Helper()
	m, err := NewMaterializer(Config{ChunkDir: t.TempDir(), OverlayDir: overlayDir})
	require.NoError(t, err)
	fr := &fakeRunner{}
	m.run = fr.run
	return m, fr
}

func TestNewMaterializer_RequiresChunkDir(t *testing.T) {
	_, err := NewMaterializer(Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRender_InvalidRange(t *testing.T) {
	m, _ := newTestMaterializer(t, "")

	_, err := m.Render(context.Background(), "vid", 10, 10, nil)
	assert.ErrorIs(t, err, domain.ErrRender)

	_, err = m.Render(context.Background(), "", 0, 10, nil)
	assert.ErrorIs(t, err, domain.ErrRender)
}

func TestRender_NoSubtitlesNoOverlayReturnsChunk(t *testing.T) {
	m, fr := newTestMaterializer(t, "")

	path, err := m.Render(context.Background(), "vid", 5, 25, nil)
	require.NoError(t, err)
	assert.Equal(t, "chunk_5.000_25.000.mp4", filepath.Base(path))
	assert.FileExists(t, path)
	assert.Empty(t, fr.callsTo("ffmpeg"))

	dl := fr.callsTo("yt-dlp")
	require.Len(t, dl, 1)
	assert.Equal(t, "*5.000-25.000", argAfter(dl[0].args, "--download-sections"))
	assert.Contains(t, dl[0].args, "--force-keyframes-at-cuts")
	assert.Equal(t, "https://www.youtube.com/watch?v=vid", dl[0].args[len(dl[0].args)-1])
}

func TestRender_ClampsToSixtySeconds(t *testing.T) {
	m, fr := newTestMaterializer(t, "")

	_, err := m.Render(context.Background(), "vid", 100, 250, nil)
	require.NoError(t, err)

	dl := fr.callsTo("yt-dlp")
	require.Len(t, dl, 1)
	assert.Equal(t, "*100.000-160.000", argAfter(dl[0].args, "--download-sections"))
}

func TestRender_BurnsSubtitles(t *testing.T) {
	m, fr := newTestMaterializer(t, "")
	subs := []domain.SubtitleEntry{
		{Text: "hello", Start: 0, Duration: 2},
		{Text: "past the cap", Start: 61, Duration: 2},
	}

	path, err := m.Render(context.Background(), "vid", 0, 20, subs)
	require.NoError(t, err)
	assert.Equal(t, "final_0.000_20.000.mp4", filepath.Base(path))

	ff := fr.callsTo("ffmpeg")
	require.Len(t, ff, 1)
	vf := argAfter(ff[0].args, "-vf")
	assert.True(t, strings.HasPrefix(vf, "subtitles="), vf)
	assert.Contains(t, vf, "force_style='FontSize=24,Alignment=2'")
	assert.Equal(t, "30.000", argAfter(ff[0].args, "-t"))
	assert.Equal(t, "atrim=0:30.000", argAfter(ff[0].args, "-af"))

	// intermediates are removed after success
	dir := filepath.Dir(path)
	assert.NoFileExists(t, filepath.Join(dir, "chunk_0.000_20.000.mp4"))
	assert.NoFileExists(t, filepath.Join(dir, "subs_0.000_20.000.srt"))
}

func TestRender_WithOverlay(t *testing.T) {
	overlays := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(overlays, "loop.mp4"), []byte("o"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(overlays, "notes.txt"), []byte("x"), 0o644))

	m, fr := newTestMaterializer(t, overlays)
	subs := []domain.SubtitleEntry{{Text: "hi", Start: 0, Duration: 1}}

	path, err := m.Render(context.Background(), "vid", 0, 30, subs)
	require.NoError(t, err)
	assert.Equal(t, "final_0.000_30.000.mp4", filepath.Base(path))

	assert.Len(t, fr.callsTo("ffprobe"), 2)
	ff := fr.callsTo("ffmpeg")
	require.Len(t, ff, 1)
	args := ff[0].args
	assert.Contains(t, args, filepath.Join(overlays, "loop.mp4"))
	graph := argAfter(args, "-filter_complex")
	assert.Contains(t, graph, "vstack=inputs=2")
	assert.Contains(t, graph, "loop=1:size=750:start=0")
	assert.True(t, strings.HasSuffix(graph, "[outv]"), graph)
	assert.Equal(t, "[outv]", argAfter(args, "-map"))
}

func TestRender_ComposeFailureFallsBackToChunk(t *testing.T) {
	m, fr := newTestMaterializer(t, "")
	fr.ffmpegErr = errors.New("boom")

	path, err := m.Render(context.Background(), "vid", 0, 10, []domain.SubtitleEntry{{Text: "a", Start: 0, Duration: 1}})
	require.NoError(t, err)
	assert.Equal(t, "chunk_0.000_10.000.mp4", filepath.Base(path))
	assert.FileExists(t, path)
}

func TestRender_DownloadFailure(t *testing.T) {
	m, fr := newTestMaterializer(t, "")
	fr.downloadFn = func() error { return errors.New("403") }

	_, err := m.Render(context.Background(), "vid", 0, 10, nil)
	assert.ErrorIs(t, err, domain.ErrRender)
}

func TestRender_SkipsExistingFinal(t *testing.T) {
	m, fr := newTestMaterializer(t, "")
	dir := filepath.Join(m.chunkDir, "vid")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	final := filepath.Join(dir, "final_0.000_10.000.mp4")
	require.NoError(t, os.WriteFile(final, []byte("done"), 0o644))

	path, err := m.Render(context.Background(), "vid", 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, final, path)
	assert.Empty(t, fr.callsTo("yt-dlp"))
}

func TestStackFilter(t *testing.T) {
	got := stackFilter(40, 15, "")
	want := "[0:v]setpts=PTS-STARTPTS,trim=0:40.000[top];" +
		"[1:v]loop=2:size=1000:start=0,setpts=PTS-STARTPTS,trim=0:40.000[bottom];" +
		"[top][bottom]vstack=inputs=2[outv]"
	assert.Equal(t, want, got)

	withSubs := stackFilter(10, 30, "/tmp/a.srt")
	assert.Contains(t, withSubs, "loop=1:size=250")
	assert.Contains(t, withSubs, "vstack=inputs=2[v];[v]subtitles=/tmp/a.srt:force_style='FontSize=24,Alignment=2'[outv]")
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, `C\:\\clips\\a\,b.srt`, escapeFilterPath(`C:\clips\a,b.srt`))
}

func TestPickOverlay_Stable(t *testing.T) {
	overlays := t.TempDir()
	for _, n := range []string{"a.mp4", "b.mp4", "c.MP4"} {
		require.NoError(t, os.WriteFile(filepath.Join(overlays, n), []byte("o"), 0o644))
	}
	m, _ := newTestMaterializer(t, overlays)

	first := m.pickOverlay("vid", 12)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.pickOverlay("vid", 12))
	}

	m.overlayDir = filepath.Join(overlays, "missing")
	assert.Empty(t, m.pickOverlay("vid", 12))
}
