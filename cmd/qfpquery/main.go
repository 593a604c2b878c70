// Command qfpquery fingerprints a clip as a Query-type fingerprint and
// reports its matches against the catalog, the query-side counterpart to
// cmd/qfpindex, following the same teacher cobra-CLI shape
// (cli/internal/cmd/root.go).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mbortnyck/qfp/internal/audio"
	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/fingerprint"
	"github.com/mbortnyck/qfp/internal/kernel"
	"github.com/mbortnyck/qfp/internal/logger"
	"github.com/mbortnyck/qfp/internal/match"
	"github.com/mbortnyck/qfp/internal/metrics"
	"github.com/mbortnyck/qfp/internal/quads"
)

// targetDBFS is the §6 loudness-normalization target.
const targetDBFS = -20.0

var (
	logLevel  string
	logFile   string
	snip      float64
	topN      int
	normalize bool
)

var rootCmd = &cobra.Command{
	Use:   "qfpquery <file>",
	Short: "Match an audio clip against the quad-hash catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file (default: qfp.log)")
	rootCmd.Flags().Float64Var(&snip, "snip", 0, "Truncate the clip to its first N seconds before matching (0 = full clip)")
	rootCmd.Flags().IntVar(&topN, "top", 5, "Maximum number of matches to print")
	rootCmd.Flags().BoolVar(&normalize, "normalize", false, "Loudness-normalize the clip to -20 dBFS before fingerprinting (§6)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "qfpquery: %v\n", err)
		os.Exit(1)
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := logger.Initialize(logLevel, logFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	m := metrics.Initialize()

	if err := audio.CheckFFmpegInstallation(); err != nil {
		logger.Log.Warn("ffmpeg not found on PATH; decoding will fail", zap.Error(err))
	}

	k, err := kernel.New(config.StoreConfigFromEnv(), config.DefaultMatcherConfig(), logger.Log)
	if err != nil {
		return fmt.Errorf("init kernel: %w", err)
	}
	defer k.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	queryID := uuid.NewString()
	log := logger.Log.With(zap.String("query_id", queryID))

	decoder := audio.FFmpegDecoder{Snip: snip}
	samples, err := decoder.Decode(ctx, args[0])
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	if normalize {
		audio.NormalizeLoudness(samples, targetDBFS)
	}

	fp, err := fingerprint.Build(samples, config.Query)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", args[0], err)
	}

	m.QueriesTotal.Inc()
	start := time.Now()
	matches, err := k.Matcher().Query(ctx, queryFingerprint(fp))
	m.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("query %s: %w", args[0], err)
	}
	m.MatchesEmitted.Observe(float64(len(matches)))

	log.Info("query complete", zap.String("path", args[0]), zap.Int("matches", len(matches)))

	if len(matches) == 0 {
		fmt.Println("no match found")
		return nil
	}

	if topN > 0 && topN < len(matches) {
		matches = matches[:topN]
	}
	for _, mt := range matches {
		fmt.Printf("%-40s offset=%-8d score=%.3f\n", mt.Title, mt.Offset, mt.VScore)
	}
	return nil
}

func queryFingerprint(fp *fingerprint.Fingerprint) match.QueryFingerprint {
	return match.QueryFingerprint{
		Type:   fp.Type,
		Hashes: fp.Hashes,
		Quads:  fp.Quads,
		Peaks:  sortedPeaks(fp.Peaks),
	}
}

// sortedPeaks is a defensive no-op copy: internal/spectral.FindPeaks
// already yields peaks sorted ascending by x then y, the order
// internal/match.peakNearby's binary search requires.
func sortedPeaks(peaks []quads.Peak) []quads.Peak {
	out := make([]quads.Peak, len(peaks))
	copy(out, peaks)
	return out
}
