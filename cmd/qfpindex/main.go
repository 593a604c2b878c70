// Command qfpindex ingests audio files into the catalog as Reference
// fingerprints, the teacher's cobra-CLI shape (cli/internal/cmd/root.go)
// adapted to a single-purpose ingestion tool instead of a multi-command
// API client.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mbortnyck/qfp/internal/audio"
	"github.com/mbortnyck/qfp/internal/config"
	"github.com/mbortnyck/qfp/internal/errs"
	"github.com/mbortnyck/qfp/internal/fingerprint"
	"github.com/mbortnyck/qfp/internal/kernel"
	"github.com/mbortnyck/qfp/internal/logger"
	"github.com/mbortnyck/qfp/internal/metrics"
	"github.com/mbortnyck/qfp/internal/store"
)

// targetDBFS is the §6 loudness-normalization target.
const targetDBFS = -20.0

var (
	logLevel   string
	logFile    string
	snip       float64
	concurrent int
	normalize  bool
)

var rootCmd = &cobra.Command{
	Use:   "qfpindex [files or directories...]",
	Short: "Index audio recordings into the quad-hash catalog",
	Long: `qfpindex decodes each given audio file (or every audio file found
under a given directory), builds its Reference fingerprint, and persists
it to the catalog store and spatial index.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file (default: qfp.log)")
	rootCmd.Flags().Float64Var(&snip, "snip", 0, "Truncate each clip to its first N seconds (0 = full clip)")
	rootCmd.Flags().IntVar(&concurrent, "concurrency", 4, "Number of files to decode and fingerprint concurrently")
	rootCmd.Flags().BoolVar(&normalize, "normalize", false, "Loudness-normalize each clip to -20 dBFS before fingerprinting (§6)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "qfpindex: %v\n", err)
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	paths, err := collectAudioFiles(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrent)

	decoder := chooseDecoder(snip)

	for _, path := range paths {
		path := path
		group.Go(func() error {
			title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if err := indexOne(gctx, k, decoder, m, path, title); err != nil {
				if errs.Is(err, errs.DuplicateTitle) {
					logger.Log.Warn("skipping duplicate title", zap.String("path", path), zap.String("title", title))
					return nil
				}
				logger.Log.Error("failed to index file", zap.String("path", path), zap.Error(err))
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

// indexOne decodes, fingerprints, and persists one file. The catalog write
// and the spatial-index write happen inside InsertRecord's single
// transaction, so a crash mid-write never leaves a record with no index
// entries (§4.5).
func indexOne(ctx context.Context, k *kernel.Kernel, decoder audio.Decoder, m *metrics.Metrics, path, title string) error {
	samples, err := decoder.Decode(ctx, path)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if normalize {
		audio.NormalizeLoudness(samples, targetDBFS)
	}

	fp, err := fingerprint.Build(samples, config.Reference)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", path, err)
	}

	recordID, quadIDs, err := k.Store().InsertRecord(ctx, k.Index(), storeFingerprint(title, fp))
	if err != nil {
		return err
	}
	m.RecordsIndexed.Inc()
	m.QuadsIndexed.Add(float64(len(quadIDs)))

	logger.Log.Info("indexed record",
		logger.WithRecordID(recordID),
		logger.WithTitle(title),
		zap.Int("quads", len(quadIDs)),
	)
	return nil
}

func storeFingerprint(title string, fp *fingerprint.Fingerprint) store.Fingerprint {
	return store.Fingerprint{Type: fp.Type, Title: title, Peaks: fp.Peaks, Quads: fp.Quads, Hashes: fp.Hashes}
}

func chooseDecoder(snip float64) audio.Decoder {
	return audio.FFmpegDecoder{Snip: snip}
}

func collectAudioFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if isAudioExt(p) {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

func isAudioExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".flac", ".m4a", ".ogg", ".aac":
		return true
	default:
		return false
	}
}
