// Package lrc parses LRC timed lyrics and resolves the line active at a
// playback position.
package lrc

import (
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/genricoloni/spotline/internal/domain"
)

// linePattern matches "[mm:ss.ff]text". The fraction is read as hundredths,
// so a three-digit fraction yields an offset ten times too large.
var linePattern = regexp.MustCompile(`^\[(\d+):(\d+)\.(\d+)\](.*)$`)

// Parse converts LRC text into lines sorted by time. Lines without a
// timestamp prefix and lines whose text is blank are dropped. Lines sharing
// a timestamp keep their order of appearance.
func Parse(text string) []domain.LyricLine {
	var lines []domain.LyricLine

	for _, raw := range strings.Split(text, "\n") {
		m := linePattern.FindStringSubmatch(strings.TrimRight(raw, "\r"))
		if m == nil {
			continue
		}

		lyric := strings.TrimSpace(m[4])
		if lyric == "" {
			continue
		}

		minutes, err1 := strconv.ParseInt(m[1], 10, 64)
		seconds, err2 := strconv.ParseInt(m[2], 10, 64)
		fraction, err3 := strconv.ParseInt(m[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		lines = append(lines, domain.LyricLine{
			TimeMs: (minutes*60+seconds)*1000 + fraction*10,
			Text:   lyric,
		})
	}

	slices.SortStableFunc(lines, func(a, b domain.LyricLine) int {
		switch {
		case a.TimeMs < b.TimeMs:
			return -1
		case a.TimeMs > b.TimeMs:
			return 1
		}
		return 0
	})
	return lines
}

// ResolveIndex returns the index of the last line starting at or before
// positionMs, or 0 when the position precedes every line. It returns -1 for
// an empty slice.
func ResolveIndex(lines []domain.LyricLine, positionMs int64) int {
	if len(lines) == 0 {
		return -1
	}
	i := sort.Search(len(lines), func(i int) bool { return lines[i].TimeMs > positionMs }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// ResolveLine returns the line active at positionMs
func ResolveLine(lines []domain.LyricLine, positionMs int64) (domain.LyricLine, bool) {
	i := ResolveIndex(lines, positionMs)
	if i < 0 {
		return domain.LyricLine{}, false
	}
	return lines[i], true
}

// FirstPlainLine returns the first non-blank line of plain lyrics
func FirstPlainLine(plain string) string {
	for _, line := range strings.Split(plain, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
