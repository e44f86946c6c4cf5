// Command assetlift lists, exports and scans packed game assets.
//
// Usage:
//
//	assetlift index  [flags] MASTER_INDEX
//	assetlift export [flags] MASTER_INDEX [NAME...]
//	assetlift scan   [flags] --pid PID --layout LAYOUT
//
// Settings come from an optional YAML file (--config) and are overridden by
// flags. Scan layouts are YAML files naming either a code signature that
// references the pool table or explicit pool addresses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/spf13/pflag"

	"github.com/meigma/assetlift"
	"github.com/meigma/assetlift/export"
	"github.com/meigma/assetlift/index"
	"github.com/meigma/assetlift/internal/batch"
	"github.com/meigma/assetlift/internal/pathutil"
	"github.com/meigma/assetlift/pool"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches to a subcommand.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing command")
	}
	switch args[0] {
	case "index":
		return runIndex(args[1:], stdout, stderr)
	case "export":
		return runExport(ctx, args[1:], stdout, stderr)
	case "scan":
		return runScan(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: assetlift <command> [flags]

Commands:
  index   list the exportable entries of a master index
  export  export entries as SEModel or Cast files
  scan    classify the asset pools of a running process

Run "assetlift <command> --help" for flags.
`)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	return fs
}

// openSession parses flags, loads the configuration and creates a session.
func openSession(fs *pflag.FlagSet, flags *configFlags, args []string, stderr io.Writer) (*assetlift.Session, *Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := flags.resolve(fs)
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.sessionOptions()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, assetlift.WithLogger(newLogger(stderr, flags.verbose)))
	s, err := assetlift.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func closeSession(s *assetlift.Session, stderr io.Writer) {
	if err := s.Close(); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
}

func runIndex(args []string, stdout, stderr io.Writer) error {
	var flags configFlags
	fs := newFlagSet("index", stderr)
	flags.register(fs)

	s, _, err := openSession(fs, &flags, args, stderr)
	if err != nil {
		return err
	}
	defer closeSession(s, stderr)

	if fs.NArg() != 1 {
		return errors.New("index: expected one master index path")
	}
	entries, err := s.ResolveIndex(fs.Arg(0))
	if err != nil {
		return err
	}
	for _, e := range entries {
		dest := e.Destination
		if dest == "" {
			dest = "-"
		}
		fmt.Fprintf(stdout, "%s\t%d\t%s\t%s\t%d\t%d\n",
			e.Type, e.Container, e.Name, dest, e.CompressedSize, e.UncompressedSize)
	}
	return nil
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var flags configFlags
	fs := newFlagSet("export", stderr)
	flags.register(fs)

	s, cfg, err := openSession(fs, &flags, args, stderr)
	if err != nil {
		return err
	}
	defer closeSession(s, stderr)

	if fs.NArg() < 1 {
		return errors.New("export: expected a master index path")
	}
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	entries, err := s.ResolveIndex(fs.Arg(0))
	if err != nil {
		return err
	}
	if names := fs.Args()[1:]; len(names) > 0 {
		entries = slices.DeleteFunc(entries, func(e index.Entry) bool {
			return !slices.Contains(names, e.Name)
		})
	}

	results := s.ExportAll(ctx, entries, format, cfg.OutputDir)
	var failed int
	for _, r := range results {
		if r.Status == batch.StatusError {
			failed++
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", r.Status, r.Name, r.Message)
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", r.Status, r.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d entries failed", failed, len(results))
	}
	return nil
}

func runScan(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		flags      configFlags
		pid        int
		layoutPath string
		extractDir string
	)
	fs := newFlagSet("scan", stderr)
	fs.IntVarP(&pid, "pid", "p", 0, "process to scan")
	fs.StringVarP(&layoutPath, "layout", "l", "", "YAML pool layout file")
	fs.StringVarP(&extractDir, "extract", "x", "", "write decoded payloads of loaded assets here")
	flags.register(fs)

	s, _, err := openSession(fs, &flags, args, stderr)
	if err != nil {
		return err
	}
	defer closeSession(s, stderr)

	if pid <= 0 || layoutPath == "" {
		return errors.New("scan: --pid and --layout are required")
	}
	layout, err := LoadLayout(layoutPath)
	if err != nil {
		return err
	}

	tables, err := layout.tables()
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		sig, kinds, err := layout.signature()
		if err != nil {
			return err
		}
		tables, err = s.DiscoverTables(pid, sig, layout.Signature.Start, layout.Signature.End, kinds...)
		if err != nil {
			return err
		}
	}

	slots, err := s.ScanProcess(ctx, pid, tables)
	if err != nil {
		return err
	}
	return reportSlots(ctx, slots, extractDir, stdout)
}

// reportSlots prints one line per loaded slot plus per-status totals, and
// extracts loaded payloads when dir is set.
func reportSlots(ctx context.Context, slots []pool.Slot, dir string, stdout io.Writer) error {
	counts := make(map[pool.Status]int)
	var errs []error
	for _, slot := range slots {
		counts[slot.Status]++
		if slot.Status != pool.StatusLoaded {
			continue
		}
		a := slot.Asset
		fmt.Fprintf(stdout, "%s\t%d\t0x%x\t%s\tbones=%d meshes=%d\n",
			a.Kind, slot.Index, a.Address, a.Name, a.Summary.Bones, a.Summary.Meshes)
		if dir == "" {
			continue
		}
		if err := extractSlot(ctx, a, dir); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", a.Kind, a.Name, err))
		}
	}
	fmt.Fprintf(stdout, "loaded=%d placeholder=%d null=%d\n",
		counts[pool.StatusLoaded], counts[pool.StatusPlaceholder], counts[pool.StatusNull])
	return errors.Join(errs...)
}

func extractSlot(ctx context.Context, a *pool.Asset, dir string) error {
	data, err := a.Extract(ctx)
	if err != nil {
		return err
	}
	path, err := pathutil.Join(dir, a.Kind.String()+"/"+a.Name+".bin")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
