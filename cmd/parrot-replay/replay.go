package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/nobletooth/parrot/pkg/cache"
)

// maxLineSize bounds a single input line.
const maxLineSize = 1 << 20

// record is one parsed input line.
type record struct {
	line int
	key  string
	text string
}

// parseLine splits `key<TAB>text`; lines without a tab are keyed by their line number.
// Blank lines are skipped.
func parseLine(raw string, line int) (record, bool) {
	raw = strings.TrimRight(raw, "\r")
	if strings.TrimSpace(raw) == "" {
		return record{}, false
	}
	if key, text, hasKey := strings.Cut(raw, "\t"); hasKey && key != "" {
		return record{line: line, key: key, text: text}, true
	}
	return record{line: line, key: strconv.Itoa(line), text: raw}, true
}

type summary struct {
	lines   int // Replayed lines, blank ones excluded.
	matches int // Lines that matched an earlier one at or above the minimum score.
}

// replay feeds every line of `r` to `similarity` and writes the matches scoring at least `minScore` to `w`.
func replay(r io.Reader, w io.Writer, similarity *cache.Similarity[int], minScore float64) (summary, error) {
	var (
		stats  summary
		keyOf  = color.New(color.FgCyan).SprintFunc()
		strong = color.New(color.FgGreen, color.Bold).SprintfFunc()
		weak   = color.New(color.FgYellow).SprintfFunc()
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for line := 1; scanner.Scan(); line++ {
		rec, ok := parseLine(scanner.Text(), line)
		if !ok {
			continue
		}
		stats.lines++

		match := similarity.Insert(rec.key, rec.text, rec.line)
		if !match.Found() || match.Score < minScore {
			continue
		}
		stats.matches++
		matchedKey, _ := match.Key.Get()
		matchedLine, _ := match.Value.Get()
		score := weak("%.4f", match.Score)
		if match.Score >= 0.95 {
			score = strong("%.4f", match.Score)
		}
		if _, err := fmt.Fprintf(w, "%s (line %d) ~ %s (line %d): %s\n",
			keyOf(rec.key), rec.line, keyOf(matchedKey), matchedLine, score); err != nil {
			return stats, fmt.Errorf("failed to write match: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read input: %w", err)
	}
	return stats, nil
}
