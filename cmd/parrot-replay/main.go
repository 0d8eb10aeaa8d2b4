// Replays a text log through a similarity cache and prints the near duplicates it finds.
//
// Each input line is either `key<TAB>text` or plain text, in which case the line number is the key.

package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/nobletooth/parrot/pkg/cache"
	"github.com/nobletooth/parrot/pkg/utils"
)

var (
	input     = flag.String("input", "-", "File to replay; '-' reads stdin.")
	capacity  = flag.Int("capacity", 100, "Number of recent lines each line is compared against.")
	weighting = flag.String("weighting", string(cache.WeightingIDF), "Bigram weighting: idf or uniform.")
	minScore  = flag.Float64("min_score", 0.8, "Only matches scoring at least this much are printed.")
	noColor   = flag.Bool("no_color", false, "Disable colored output.")
)

func main() {
	flag.Parse()
	utils.InitLogging()
	if *noColor {
		color.NoColor = true
	}

	cacheWeighting, err := cache.ParseWeighting(*weighting)
	if err != nil {
		slog.Error("Invalid --weighting flag.", "error", err)
		os.Exit(2)
	}

	var reader io.Reader = os.Stdin
	if *input != "-" {
		file, err := os.Open(*input)
		if err != nil {
			slog.Error("Failed to open input.", "path", *input, "error", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		reader = file
	}

	similarity := cache.NewSimilarity[int](*capacity, cacheWeighting, nil /*evictionCallback*/)
	stats, err := replay(reader, color.Output, similarity, *minScore)
	if err != nil {
		slog.Error("Replay failed.", "error", err)
		os.Exit(1)
	}
	printSummary(color.Output, stats)
}

func printSummary(w io.Writer, stats summary) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "%d lines, %d near duplicates", stats.lines, stats.matches)
	if stats.lines > 0 {
		_, _ = fmt.Fprintf(w, " (%.1f%%)", 100*float64(stats.matches)/float64(stats.lines))
	}
	_, _ = fmt.Fprintln(w)
}
