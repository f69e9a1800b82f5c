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
	"syscall"

	"github.com/benoitkugler/favigen/clipboard"
	"github.com/benoitkugler/favigen/emit"
	"github.com/benoitkugler/favigen/favicon"
	"github.com/benoitkugler/favigen/pngenc"
	"github.com/benoitkugler/favigen/session"
	"github.com/benoitkugler/favigen/svgraster"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
)

const usage = `favigen turns an SVG image into a set of favicons.

Usage:
    favigen [flags] preview <input.svg|->
    favigen [flags] png --size N <input.svg|->
    favigen [flags] zip <input.svg|->
    favigen [flags] snippet [--copy]

Commands:
    preview   write preview-<size>.png for sizes 16, 32, 64, 128 and 512
    png       write the icon of one size (16, 32, 180, 192 or 512)
    zip       write favicons.zip with every icon under favicon/
    snippet   print the <link> tags referencing the icons

Flags:
`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

var (
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line `args` and returns the exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		fromFlags  config
		configPath string
		size       int
		copyText   bool
	)
	defaults := defaultConfig()
	flags := pflag.NewFlagSet("favigen", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	flags.StringVarP(&fromFlags.Output, "output", "o", defaults.Output, "destination directory, or - for stdout")
	flags.IntVar(&fromFlags.Supersample, "supersample", defaults.Supersample, "paint at this factor of the size, then downsample")
	flags.IntVar(&fromFlags.Workers, "workers", defaults.Workers, "number of sizes exported concurrently by zip")
	flags.BoolVar(&fromFlags.Strict, "strict", defaults.Strict, "fail on unsupported SVG elements")
	flags.StringVar(&fromFlags.LogLevel, "log-level", defaults.LogLevel, "debug, info, warn or error")
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.IntVarP(&size, "size", "s", 0, "icon size for the png command")
	flags.BoolVar(&copyText, "copy", false, "also copy the snippet to the clipboard")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := defaults
	if configPath != "" {
		var err error
		if cfg, err = readConfigFile(configPath); err != nil {
			return report(stderr, err)
		}
	}
	cfg = mergeFlags(cfg, flags, fromFlags)
	if err := cfg.validate(); err != nil {
		return report(stderr, err)
	}
	level, _ := cfg.level()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}
	command := flags.Arg(0)

	if command == "snippet" {
		fmt.Fprintln(stdout, favicon.Snippet)
		if copyText {
			if err := clipboard.Copy(stdout, favicon.Snippet); err != nil {
				logger.Warn("copy failed", "error", err)
				fmt.Fprintln(stderr, noticeStyle.Render("Failed to copy to clipboard"))
				return 1
			}
		}
		return 0
	}

	switch command {
	case "preview", "png", "zip":
	default:
		flags.Usage()
		return 2
	}
	if flags.NArg() != 2 {
		flags.Usage()
		return 2
	}

	var emitter emit.Emitter = emit.Dir(cfg.Output)
	if cfg.Output == pipeName {
		if command == "preview" {
			return report(stderr, errors.New("preview writes several files and needs an output directory"))
		}
		emitter = emit.Writer{W: stdout}
	}
	s := session.New(session.Options{
		Renderer: svgraster.NewRenderer(svgraster.OKSVG{Strict: cfg.Strict, Supersample: cfg.Supersample}),
		Emitter:  emitter,
		Logger:   logger,
		Workers:  cfg.Workers,
	})
	if err := load(s, flags.Arg(1), stdin); err != nil {
		return report(stderr, err)
	}

	var err error
	switch command {
	case "preview":
		err = preview(ctx, s, emitter, logger)
	case "png":
		err = s.DownloadOne(ctx, size)
	case "zip":
		err = s.DownloadAll(ctx)
	}
	if err != nil {
		return report(stderr, err)
	}
	return 0
}

func load(s *session.Session, input string, stdin io.Reader) error {
	if input == pipeName {
		return s.LoadFile("stdin.svg", "image/svg+xml", stdin)
	}
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.LoadFile(filepath.Base(input), "", f)
}

// preview renders the preview sizes and writes them as png files.
// Sizes which fail are skipped, the others are still written.
func preview(ctx context.Context, s *session.Session, emitter emit.Emitter, logger *slog.Logger) error {
	previews, renderErr := s.Generate(ctx)
	for _, p := range previews {
		if p.Err != nil {
			continue
		}
		data, err := pngenc.Encode(p.Image)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("preview-%d.png", p.Size)
		if err := emitter.Emit(ctx, name, data); err != nil {
			return err
		}
		logger.Debug("preview written", "file", name)
	}
	return renderErr
}

// report prints err as the single error line and returns the exit code.
func report(stderr io.Writer, err error) int {
	fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
	return 1
}
