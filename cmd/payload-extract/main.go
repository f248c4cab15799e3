package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/miradorstack/dmr-correlate/internal/payload"
	"github.com/miradorstack/dmr-correlate/internal/repo"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

const usage = "usage: payload-extract [-bytes 55] <hexdump>"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("payload-extract", flag.ContinueOnError)
	flags.SetOutput(stderr)
	size := flags.Int("bytes", payload.DefaultPayloadBytes, "Trailing payload bytes to keep per packet")
	level := flags.String("log-level", "debug", "Log level for diagnostics on stderr")
	flags.Usage = func() {
		fmt.Fprintln(stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, usage)
		return 1
	}
	path := flags.Arg(0)
	logger := utils.NewLogger(*level, false)

	in, err := repo.OpenInput(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer in.Close()

	payloads, stats, err := payload.NewExtractor(*size, logger).Extract(in)
	if err != nil {
		logger.Error("extraction failed", slog.String("path", path), slog.Any("error", err))
		return 1
	}
	if err := payload.WriteLiterals(stdout, payloads); err != nil {
		logger.Error("failed to write literals", slog.Any("error", err))
		return 1
	}
	logger.Debug("payload extraction finished",
		slog.Int("blocks", stats.Blocks),
		slog.Int("payloads", stats.Kept),
		slog.Int("dropped", stats.Dropped),
		slog.String("bytes", humanize.Bytes(uint64(stats.Kept*(*size)))))
	return 0
}
