package repo

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the container an input file is wrapped in.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Input is an opened capture or log file, transparently decompressed.
type Input struct {
	io.Reader
	Compression Compression
	closers     []func() error
}

// Close releases the decoder and the underlying file.
func (in *Input) Close() error {
	var first error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	in.closers = nil
	return first
}

// OpenInput opens path and detects gzip or zstd framing from the leading magic bytes.
func OpenInput(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	in, err := wrapInput(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	in.closers = append([]func() error{f.Close}, in.closers...)
	return in, nil
}

func wrapInput(r io.Reader) (*Input, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return &Input{Reader: zr, Compression: CompressionGzip, closers: []func() error{zr.Close}}, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd header: %w", err)
		}
		return &Input{Reader: zr, Compression: CompressionZstd, closers: []func() error{func() error {
			zr.Close()
			return nil
		}}}, nil
	default:
		return &Input{Reader: br, Compression: CompressionNone}, nil
	}
}
