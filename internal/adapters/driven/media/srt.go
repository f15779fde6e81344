package media

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/custodia-labs/athena-core/internal/core/domain"
)

// formatSRTTime renders seconds as HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// clampSubtitles keeps subtitles that start inside a clip of the given length
// and trims the ones that run past it.
func clampSubtitles(subs []domain.SubtitleEntry, length float64) []domain.SubtitleEntry {
	out := make([]domain.SubtitleEntry, 0, len(subs))
	for _, sub := range subs {
		if sub.Start >= length {
			continue
		}
		if sub.End() > length {
			sub.Duration = length - sub.Start
		}
		out = append(out, sub)
	}
	return out
}

// renderSRT formats subtitles as an SRT document, numbering cues from 1.
func renderSRT(subs []domain.SubtitleEntry) string {
	var b strings.Builder
	for i, sub := range subs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatSRTTime(sub.Start), formatSRTTime(sub.End()), sub.Text)
	}
	return b.String()
}

func writeSRT(path string, subs []domain.SubtitleEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(renderSRT(subs)); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
