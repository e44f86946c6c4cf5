package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/meigma/assetlift"
	"github.com/meigma/assetlift/export"
	"github.com/meigma/assetlift/index"
)

// Config is the optional YAML configuration file. Flags set on the command
// line override its values.
type Config struct {
	// CodecLibrary is the shared library providing the native codec.
	CodecLibrary string `yaml:"codec_library"`

	// Workers is the number of entries exported concurrently.
	Workers int `yaml:"workers"`

	// MemoryBudget caps the decoded bytes held by in-flight exports.
	MemoryBudget int64 `yaml:"memory_budget"`

	// SnapshotDir holds cached index snapshots. Empty disables snapshots.
	SnapshotDir string `yaml:"snapshot_dir"`

	// OutputDir is where exported files are written.
	OutputDir string `yaml:"output_dir"`

	// Format is the export format name: "semodel" or "cast".
	Format string `yaml:"format"`

	// Types lists the four-character entry types to export.
	Types []string `yaml:"types"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workers:   runtime.GOMAXPROCS(0),
		OutputDir: "export",
		Format:    export.FormatCast.String(),
	}
}

// LoadConfig reads the YAML file at path over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must be non-negative"))
	}
	if c.MemoryBudget < 0 {
		errs = append(errs, errors.New("memory_budget must be non-negative"))
	}
	if _, err := export.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.typeTags(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) typeTags() ([]index.TypeTag, error) {
	tags := make([]index.TypeTag, 0, len(c.Types))
	for _, s := range c.Types {
		t, err := index.ParseTypeTag(s)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// sessionOptions translates the configuration into session options.
func (c *Config) sessionOptions() ([]assetlift.Option, error) {
	opts := []assetlift.Option{
		assetlift.WithWorkers(c.Workers),
		assetlift.WithMemoryBudget(c.MemoryBudget),
	}
	if c.CodecLibrary != "" {
		opts = append(opts, assetlift.WithCodecLibrary(c.CodecLibrary))
	}
	if c.SnapshotDir != "" {
		opts = append(opts, assetlift.WithSnapshotDir(c.SnapshotDir))
	}
	tags, err := c.typeTags()
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		opts = append(opts, assetlift.WithExportable(tags...))
	}
	return opts, nil
}

// configFlags binds the config-file overrides shared by every subcommand.
type configFlags struct {
	path         string
	codecLibrary string
	workers      int
	memoryBudget int64
	snapshotDir  string
	outputDir    string
	format       string
	types        []string
	verbose      bool
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.path, "config", "c", "", "YAML configuration file")
	fs.StringVar(&f.codecLibrary, "codec-library", "", "shared library providing the native codec")
	fs.IntVarP(&f.workers, "workers", "j", 0, "entries exported concurrently (0 = GOMAXPROCS)")
	fs.Int64Var(&f.memoryBudget, "memory-budget", 0, "max decoded bytes held by in-flight exports (0 = unlimited)")
	fs.StringVar(&f.snapshotDir, "snapshot-dir", "", "cache resolved indices in this directory")
	fs.StringVarP(&f.outputDir, "output", "o", "", "output directory")
	fs.StringVarP(&f.format, "format", "f", "", "export format (semodel, cast)")
	fs.StringSliceVarP(&f.types, "types", "t", nil, "entry types to list or export (e.g. XMDL,XANM)")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
}

// resolve loads the config file and applies flags that were set.
func (f *configFlags) resolve(fs *pflag.FlagSet) (*Config, error) {
	cfg, err := LoadConfig(f.path)
	if err != nil {
		return nil, err
	}
	if fs.Changed("codec-library") {
		cfg.CodecLibrary = f.codecLibrary
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("memory-budget") {
		cfg.MemoryBudget = f.memoryBudget
	}
	if fs.Changed("snapshot-dir") {
		cfg.SnapshotDir = f.snapshotDir
	}
	if fs.Changed("output") {
		cfg.OutputDir = f.outputDir
	}
	if fs.Changed("format") {
		cfg.Format = f.format
	}
	if fs.Changed("types") {
		cfg.Types = f.types
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
