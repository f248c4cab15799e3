package payload

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultPayloadBytes is the size of an MMDVM network frame.
const DefaultPayloadBytes = 55

const blockSeparator = "--"

var hexLineRe = regexp.MustCompile(`^\s*0x[0-9a-f]+:`)

// Stats describes one extraction pass.
type Stats struct {
	Blocks  int
	Kept    int
	Dropped int
}

// Extractor pulls trailing UDP payloads out of tcpdump -x / -X hex output.
type Extractor struct {
	payloadBytes int
	logger       *slog.Logger
}

// NewExtractor builds an extractor keeping the last payloadBytes bytes of each block.
func NewExtractor(payloadBytes int, logger *slog.Logger) *Extractor {
	if payloadBytes <= 0 {
		payloadBytes = DefaultPayloadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{payloadBytes: payloadBytes, logger: logger}
}

// Extract reads the dump and returns one payload per block long enough to hold it.
func (e *Extractor) Extract(r io.Reader) ([][]byte, Stats, error) {
	blocks, err := splitBlocks(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read hex dump: %w", err)
	}

	stats := Stats{Blocks: len(blocks)}
	e.logger.Debug("hex dump blocks found", slog.Int("blocks", len(blocks)))

	want := e.payloadBytes * 2
	var payloads [][]byte
	for idx, block := range blocks {
		digits := blockDigits(block)
		e.logger.Debug("hex dump block",
			slog.Int("block", idx+1),
			slog.Int("hex_digits", len(digits)))
		if len(digits) < want {
			stats.Dropped++
			continue
		}
		payload, err := hex.DecodeString(digits[len(digits)-want:])
		if err != nil {
			stats.Dropped++
			e.logger.Debug("hex dump block not decodable", slog.Int("block", idx+1), slog.Any("error", err))
			continue
		}
		payloads = append(payloads, payload)
		stats.Kept++
	}

	e.logger.Debug("payloads extracted", slog.Int("payloads", stats.Kept), slog.Int("dropped", stats.Dropped))
	return payloads, stats, nil
}

// WriteLiterals renders payloads as Go byte slice literals, one commented frame each.
func WriteLiterals(w io.Writer, payloads [][]byte) error {
	bw := bufio.NewWriter(w)
	for i, p := range payloads {
		parts := make([]string, len(p))
		for j, b := range p {
			parts[j] = fmt.Sprintf("0x%02x", b)
		}
		fmt.Fprintf(bw, "// Frame %d\n[]byte{%s},\n", i+1, strings.Join(parts, ", "))
	}
	return bw.Flush()
}

func splitBlocks(r io.Reader) ([][]string, error) {
	var blocks [][]string
	var current []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == blockSeparator {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks, scanner.Err()
}

// blockDigits concatenates the hex groups of every offset line in a block.
func blockDigits(block []string) string {
	var sb strings.Builder
	for _, line := range block {
		if !hexLineRe.MatchString(line) {
			continue
		}
		_, rest, _ := strings.Cut(line, ":")
		rest = strings.TrimLeft(rest, " \t")
		// -X output separates the ASCII column with two spaces.
		if idx := strings.Index(rest, "  "); idx >= 0 {
			rest = rest[:idx]
		}
		for _, tok := range strings.Fields(rest) {
			if !isHex(tok) {
				break
			}
			sb.WriteString(tok)
		}
	}
	return sb.String()
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return s != ""
}
