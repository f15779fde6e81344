package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

func TestFormatSRTTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{59.999, "00:00:59,999"},
		{61.25, "00:01:01,250"},
		{3723.042, "01:02:03,042"},
		{-2, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := formatSRTTime(tt.in); got != tt.want {
			t.Errorf("formatSRTTime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClampSubtitles(t *testing.T) {
	subs := []domain.SubtitleEntry{
		{Text: "a", Start: 0, Duration: 5},
		{Text: "b", Start: 55, Duration: 10},
		{Text: "c", Start: 60, Duration: 2},
		{Text: "d", Start: 70, Duration: 2},
	}

	got := clampSubtitles(subs, 60)
	if len(got) != 2 {
		t.Fatalf("expected 2 subtitles, got %d", len(got))
	}
	if got[1].Text != "b" || got[1].Duration != 5 {
		t.Errorf("expected b trimmed to 5s, got %+v", got[1])
	}
	if subs[1].Duration != 10 {
		t.Error("input slice should not be modified")
	}
}

func TestRenderSRT(t *testing.T) {
	subs := []domain.SubtitleEntry{
		{Text: "hello there", Start: 0, Duration: 2.5},
		{Text: "general kenobi", Start: 2.5, Duration: 1},
	}

	want := "1\n00:00:00,000 --> 00:00:02,500\nhello there\n\n" +
		"2\n00:00:02,500 --> 00:00:03,500\ngeneral kenobi\n\n"
	if got := renderSRT(subs); got != want {
		t.Errorf("renderSRT mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.srt")
	subs := []domain.SubtitleEntry{{Text: "x", Start: 1, Duration: 1}}

	if err := writeSRT(path, subs); err != nil {
		t.Fatalf("writeSRT failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != renderSRT(subs) {
		t.Errorf("unexpected file contents: %q", data)
	}
}
