// Command bundle-cache manages a local translation bundle cache.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"github.com/localehub/bundle-cache/cache"
	"github.com/localehub/bundle-cache/storage"
)

var cli struct {
	StoragePath string        `help:"Storage location: a bolt database file or a directory." default:"./bundle-cache.db"`
	Backend     string        `help:"Storage backend." enum:"bolt,filesystem,memory" default:"bolt"`
	Prefix      string        `help:"Durable-tier key prefix." default:"translation_cache_"`
	MaxAge      time.Duration `help:"Entry TTL." default:"168h"`
	MaxSize     int64         `help:"Durable-tier byte budget." default:"5242880"`
	Compression bool          `help:"Compress large bundles." default:"true" negatable:""`
	Versioning  bool          `help:"Include version tags in cache keys."`
	LogLevel    string        `help:"Log level." enum:"debug,info,warn,error" default:"info"`

	Load   LoadCmd   `cmd:"" help:"Load bundle JSON files from a directory into the cache."`
	Get    GetCmd    `cmd:"" help:"Print a cached bundle."`
	Remove RemoveCmd `cmd:"" help:"Remove a cached bundle."`
	Stats  StatsCmd  `cmd:"" help:"Print cache statistics."`
	Scan   ScanCmd   `cmd:"" help:"Classify durable entries as valid, expired or corrupted."`
	Expire ExpireCmd `cmd:"" help:"Remove expired entries."`
	Clear  ClearCmd  `cmd:"" help:"Remove every cached bundle."`
}

type cmdContext struct {
	mgr    *cache.Manager
	logger *slog.Logger
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("bundle-cache"),
		kong.Description("Local two-tier cache for translation bundles."),
		kong.UsageOnError(),
	)

	logger, err := newLogger(cli.LogLevel)
	kctx.FatalIfErrorf(err)

	adapter, cleanup, err := newAdapter(logger)
	kctx.FatalIfErrorf(err)
	defer cleanup()

	mgr, err := cache.New(adapter, cache.Config{
		MaxAge:               cli.MaxAge,
		MaxSize:              cli.MaxSize,
		CompressionThreshold: 1024,
		EnableCompression:    cli.Compression,
		EnableVersioning:     cli.Versioning,
		StoragePrefix:        cli.Prefix,
		Logger:               logger,
	})
	kctx.FatalIfErrorf(err)
	defer mgr.Close()

	kctx.FatalIfErrorf(kctx.Run(&cmdContext{mgr: mgr, logger: logger}))
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})), nil
}

func newAdapter(logger *slog.Logger) (storage.Adapter, func(), error) {
	switch cli.Backend {
	case "bolt":
		b, err := storage.OpenBolt(cli.StoragePath, storage.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case "filesystem":
		fs, err := storage.NewFilesystem(cli.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case "memory":
		return storage.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend: %s", cli.Backend)
	}
}

// LoadCmd imports one bundle per <language>.json file found in a directory.
type LoadCmd struct {
	Dir      string  `arg:"" type:"existingdir" help:"Directory of <language>.json bundle files."`
	Coverage float64 `help:"Coverage ratio to record for each bundle." default:"1"`
	Version  string  `help:"Version tag to record for each bundle."`
}

func (c *LoadCmd) Run(cmd *cmdContext) error {
	paths, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no bundle files in %s", c.Dir)
	}

	files := make(map[string]string, len(paths))
	languages := make([]string, 0, len(paths))
	for _, p := range paths {
		lang := strings.TrimSuffix(filepath.Base(p), ".json")
		files[lang] = p
		languages = append(languages, lang)
	}

	result := cmd.mgr.Preload(context.Background(), languages, func(ctx context.Context, language string) (*cache.FetchResult, error) {
		raw, err := os.ReadFile(files[language])
		if err != nil {
			return nil, err
		}
		var data map[string]string
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", files[language], err)
		}
		return &cache.FetchResult{Data: data, Version: c.Version, Coverage: c.Coverage}, nil
	})

	fmt.Printf("loaded %d, skipped %d, failed %d\n", len(result.Loaded), len(result.Skipped), len(result.Failed))
	for lang, err := range result.Failed {
		fmt.Printf("  %s: %v\n", lang, err)
	}
	return nil
}

// GetCmd prints one cached bundle as JSON.
type GetCmd struct {
	Language string `arg:"" help:"Locale identifier, e.g. en or pt-BR."`
	Version  string `help:"Version tag, used when versioning is enabled."`
}

func (c *GetCmd) Run(cmd *cmdContext) error {
	entry, ok := cmd.mgr.Get(context.Background(), c.Language, c.Version)
	if !ok {
		return fmt.Errorf("no cached bundle for %s", c.Language)
	}

	out, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// RemoveCmd removes one cached bundle.
type RemoveCmd struct {
	Language string `arg:"" help:"Locale identifier."`
	Version  string `help:"Version tag, used when versioning is enabled."`
}

func (c *RemoveCmd) Run(cmd *cmdContext) error {
	return cmd.mgr.Remove(context.Background(), c.Language, c.Version)
}

// StatsCmd prints cache statistics.
type StatsCmd struct{}

func (c *StatsCmd) Run(cmd *cmdContext) error {
	s := cmd.mgr.Stats(context.Background())
	fmt.Printf("items:        %d (%d in memory)\n", s.ItemCount, s.MemoryItems)
	fmt.Printf("total size:   %d bytes\n", s.TotalSize)
	fmt.Printf("hits/misses:  %d/%d (hit rate %.2f)\n", s.Hits, s.Misses, s.HitRate)
	fmt.Printf("evictions:    %d\n", s.Evictions)
	if s.CompressionRatio > 0 {
		fmt.Printf("compression:  %.2f\n", s.CompressionRatio)
	}
	return nil
}

// ScanCmd runs a non-mutating integrity pass.
type ScanCmd struct{}

func (c *ScanCmd) Run(cmd *cmdContext) error {
	report, err := cmd.mgr.ValidateIntegrity(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("total %d: %d valid, %d expired, %d corrupted\n",
		report.Total, report.Valid, report.Expired, report.Corrupted)
	return nil
}

// ExpireCmd removes expired entries.
type ExpireCmd struct{}

func (c *ExpireCmd) Run(cmd *cmdContext) error {
	removed, err := cmd.mgr.ClearExpired(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("removed %d entries\n", removed)
	return nil
}

// ClearCmd removes every cached bundle under the configured prefix.
type ClearCmd struct{}

func (c *ClearCmd) Run(cmd *cmdContext) error {
	return cmd.mgr.Clear(context.Background())
}
