package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pixedit/pixedit/internal/config"
	"github.com/pixedit/pixedit/internal/export"
	"github.com/pixedit/pixedit/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("pixedit", flag.ExitOnError)
	outDir := fs.String("out", cfg.ExportDir, "directory for saved JPEGs")
	name := fs.String("name", "", "base name for saved files (default: input file name)")
	logFile := fs.String("log", "", "write logs to this file")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: pixedit-tui [flags] <image>")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	path := fs.Arg(0)

	// The terminal belongs to the UI; logs go to a file or nowhere.
	level, _ := cfg.SlogLevel()
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	} else {
		slog.SetDefault(slog.New(slog.DiscardHandler))
	}

	if *name == "" {
		base := filepath.Base(path)
		*name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	saver, err := export.NewFileSaver(*outDir, cfg.JPEGQuality, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := tui.Run(path, *name, saver); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
