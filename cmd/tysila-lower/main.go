package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jncronin/tysos-sub004/internal/config"
	"github.com/jncronin/tysos-sub004/internal/errors"
	"github.com/jncronin/tysos-sub004/internal/lower"
	"github.com/jncronin/tysos-sub004/internal/output"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "tysila-lower - x86-64 TAC lowering backend")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: tysila-lower [options] <file.tac>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -config <path>   Config file (default: nearest tysila.toml)")
	fmt.Fprintln(w, "  -variant <name>  Override target.variant (x86_64, i586)")
	fmt.Fprintln(w, "  -json            Write the listing as JSON")
	fmt.Fprintln(w, "  -verify          Disassemble and check every lowered operation")
	fmt.Fprintln(w, "  -stats           Print lowering statistics")
	fmt.Fprintln(w, "  -no-color        Plain diagnostics even on a terminal")
	fmt.Fprintln(w, "  -v               Debug logging")
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tysila-lower", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }

	configPath := fs.String("config", "", "config file")
	variant := fs.String("variant", "", "target variant")
	jsonOut := fs.Bool("json", false, "JSON listing")
	verify := fs.Bool("verify", false, "verify output")
	showStats := fs.Bool("stats", false, "print statistics")
	verbose := fs.Bool("v", false, "debug logging")
	noColor := fs.Bool("no-color", false, "plain diagnostics")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stdout)
		return 0
	}
	filename := fs.Arg(0)

	cfg, err := loadConfig(*configPath, filename)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *variant != "" {
		cfg.Target.Variant = *variant
	}
	if *verify {
		cfg.Debug.Verify = true
	}
	if *jsonOut {
		cfg.Debug.Listing = true
	}
	if *verbose {
		cfg.Debug.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	log, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Sync()

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading file: %v\n", err)
		return 1
	}
	methods, err := parseSource(string(source), filepath.Base(filename))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	errors.SetColorsEnabled(!*noColor && errors.IsColorTerminal(stderr))
	reporter := errors.NewReporter()
	reporter.SetOutput(stderr)
	stats := lower.NewStats()

	var out []output.Unit
	for _, m := range methods {
		units, ok := lowerMethod(cfg, log, stats, reporter, m)
		if !ok {
			continue
		}
		out = append(out, units...)
		if !cfg.Debug.Listing {
			printListing(stdout, m.name, units)
		}
	}

	if cfg.Debug.Listing {
		if err := output.WriteListing(stdout, out); err != nil {
			fmt.Fprintf(stderr, "Error writing listing: %v\n", err)
			return 1
		}
	}
	if *showStats {
		s := stats.Snapshot()
		fmt.Fprintf(stderr, "ops=%d units=%d bytes=%d relocs=%d relocation_moves=%d failures=%d\n",
			s.Ops, s.Units, s.Bytes, s.Relocs, s.RelocationMoves, s.Failures)
		for _, code := range failureCodes {
			if n := reporter.CountByCode(code); n > 0 {
				fmt.Fprintf(stderr, "  %s %s=%d\n", code, errors.KindOf(code), n)
			}
		}
	}

	if reporter.HasErrors() {
		fmt.Fprintf(stderr, "%d operation(s) failed to lower\n", reporter.ErrorCount())
		return 1
	}
	return 0
}

// failureCodes -stats 按错误码分列失败数的顺序
var failureCodes = []string{errors.B0001, errors.B0002, errors.B0100, errors.B0101, errors.B0200}

// loadConfig 优先使用 -config，否则从输入文件所在目录向上查找
func loadConfig(path, input string) (*config.Config, error) {
	if path == "" {
		path = config.FindConfigFile(input)
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// lowerMethod 降级一个方法的全部操作，每个失败都报告，返回是否全部成功
func lowerMethod(cfg *config.Config, log *zap.Logger, stats *lower.Stats, reporter *errors.Reporter, m *method) ([]output.Unit, bool) {
	state := lower.NewState(lower.VariantX86_64)
	state.SetMethodInfo(m.methodInfo)
	state.Use(m.used...)

	l, err := lower.NewFromConfig(cfg, state, log.With(zap.String("method", m.name)), lower.WithStats(stats))
	if err != nil {
		reporter.Report(m.name, err)
		return nil, false
	}

	var out []output.Unit
	ok := true
	for _, o := range m.ops {
		units, err := l.Lower(o)
		if err != nil {
			reporter.Report(m.name, err)
			ok = false
			continue
		}
		out = append(out, units...)
	}
	return out, ok
}

func printListing(w io.Writer, name string, units []output.Unit) {
	fmt.Fprintf(w, "%s:\n", name)
	for _, e := range output.Listing(units, 0) {
		if e.Reloc != nil {
			fmt.Fprintf(w, "  %04x  %-24s %s %s%+d\n", e.Offset, "", e.Reloc.Kind, e.Reloc.Symbol, e.Reloc.Addend)
			continue
		}
		fmt.Fprintf(w, "  %04x  %-24s %s\n", e.Offset, e.Bytes, e.Text)
	}
	fmt.Fprintln(w)
}
