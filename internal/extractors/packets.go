package extractors

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

// dumpLineRe matches a tcpdump -tttt line for a UDP datagram:
// 2024-01-15 10:30:45.123456 IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55
// Captures taken with -i any carry an interface and direction before the protocol:
// 2024-01-15 10:30:45.123456 lo    In  IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55
var dumpLineRe = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\.(\d+)\s+(?:\S+\s+(?:In|Out|M|P|B)\s+)?(?:IP6?\s+)?(\S+)\.(\d+) > (\S+)\.(\d+):.*\bUDP, length (\d+)`,
)

// PacketSet is the outcome of a packet extraction.
type PacketSet struct {
	Packets []models.Packet
	Skipped int
}

// Dumper renders a capture file as text lines.
type Dumper interface {
	Dump(ctx context.Context, path string) ([]byte, error)
}

// PortFilter keeps packets on the MMDVM request/response port pair and classifies direction.
type PortFilter struct {
	RequestPort  int
	ResponsePort int
}

// Match reports whether either port belongs to the pair.
func (f PortFilter) Match(src, dst int) bool {
	return src == f.RequestPort || src == f.ResponsePort || dst == f.RequestPort || dst == f.ResponsePort
}

// Direction is ToTarget when the request port sends to the response port.
func (f PortFilter) Direction(src, dst int) models.Direction {
	if src == f.RequestPort && dst == f.ResponsePort {
		return models.DirectionToTarget
	}
	return models.DirectionFromTarget
}

// PacketExtractor turns tcpdump text output into packets.
type PacketExtractor struct {
	dumper Dumper
	filter PortFilter
	logger *slog.Logger
}

// NewPacketExtractor constructs a PacketExtractor backed by dumper.
func NewPacketExtractor(dumper Dumper, filter PortFilter, logger *slog.Logger) *PacketExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PacketExtractor{dumper: dumper, filter: filter, logger: logger}
}

// Extract runs the dump tool against path and parses its output.
// On failure the packets parsed so far are returned alongside the error.
func (e *PacketExtractor) Extract(ctx context.Context, path string) (PacketSet, error) {
	if e.dumper == nil {
		return PacketSet{}, utils.NewAppError("parse capture", path, "no dump tool configured", nil)
	}
	out, dumpErr := e.dumper.Dump(ctx, path)
	set, err := e.Parse(bytes.NewReader(out))
	if dumpErr != nil {
		return set, utils.NewAppError("parse capture", path, "dump tool failed", dumpErr)
	}
	if err != nil {
		return set, utils.NewAppError("parse capture", path, "read dump output", err)
	}
	return set, nil
}

// Parse reads tcpdump lines from r. Lines outside the port pair are ignored;
// lines on the pair that do not match the grammar are counted as skipped.
func (e *PacketExtractor) Parse(r io.Reader) (PacketSet, error) {
	var set PacketSet
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		matches := dumpLineRe.FindStringSubmatch(line)
		if matches == nil {
			if e.mentionsPorts(line) {
				set.Skipped++
				e.logger.Debug("skipping capture line", slog.String("line", line))
			}
			continue
		}

		src, _ := strconv.Atoi(matches[4])
		dst, _ := strconv.Atoi(matches[6])
		if !e.filter.Match(src, dst) {
			continue
		}

		ts, err := utils.ParseStamp(matches[1], matches[2])
		if err != nil {
			set.Skipped++
			continue
		}
		length, err := strconv.Atoi(matches[7])
		if err != nil {
			set.Skipped++
			continue
		}

		set.Packets = append(set.Packets, models.Packet{
			Timestamp: ts,
			Direction: e.filter.Direction(src, dst),
			Length:    length,
			SrcPort:   src,
			DstPort:   dst,
			Raw:       line,
		})
	}
	return set, scanner.Err()
}

func (e *PacketExtractor) mentionsPorts(line string) bool {
	return strings.Contains(line, "."+strconv.Itoa(e.filter.RequestPort)) ||
		strings.Contains(line, "."+strconv.Itoa(e.filter.ResponsePort))
}
