package extractors

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/miradorstack/dmr-correlate/internal/models"
	"github.com/miradorstack/dmr-correlate/internal/repo"
	"github.com/miradorstack/dmr-correlate/internal/utils"
)

const pcapngMagic = 0x0a0d0d0a

type packetDataReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// CaptureExtractor decodes pcap/pcapng files in-process instead of shelling out to tcpdump.
type CaptureExtractor struct {
	filter   PortFilter
	location *time.Location
	logger   *slog.Logger
}

// NewCaptureExtractor constructs a native capture reader. Capture times are rendered in
// location, as tcpdump would print them on a host in that zone; nil means time.Local.
func NewCaptureExtractor(filter PortFilter, location *time.Location, logger *slog.Logger) *CaptureExtractor {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureExtractor{filter: filter, location: location, logger: logger}
}

// Extract reads the capture at path (optionally gzip/zstd compressed).
func (e *CaptureExtractor) Extract(ctx context.Context, path string) (PacketSet, error) {
	in, err := repo.OpenInput(path)
	if err != nil {
		return PacketSet{}, utils.NewAppError("read capture", path, "open", err)
	}
	defer in.Close()

	set, err := e.Parse(ctx, in)
	if err != nil {
		return set, utils.NewAppError("read capture", path, "decode", err)
	}
	return set, nil
}

// Parse decodes packets from a pcap or pcapng stream.
func (e *CaptureExtractor) Parse(ctx context.Context, r io.Reader) (PacketSet, error) {
	var set PacketSet
	reader, err := newPacketDataReader(r)
	if err != nil {
		return set, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return set, nil
		}
		if err != nil {
			return set, err
		}

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, _ := udpLayer.(*layers.UDP)
		src, dst := int(udp.SrcPort), int(udp.DstPort)
		if !e.filter.Match(src, dst) {
			continue
		}
		if packet.ErrorLayer() != nil {
			set.Skipped++
			e.logger.Debug("skipping undecodable packet", slog.Any("error", packet.ErrorLayer().Error()))
			continue
		}

		srcHost, dstHost := "?", "?"
		if nl := packet.NetworkLayer(); nl != nil {
			flow := nl.NetworkFlow()
			srcHost, dstHost = flow.Src().String(), flow.Dst().String()
		}
		ts := utils.WallClock(ci.Timestamp.In(e.location)).Truncate(time.Microsecond)
		length := len(udp.Payload)
		set.Packets = append(set.Packets, models.Packet{
			Timestamp: ts,
			Direction: e.filter.Direction(src, dst),
			Length:    length,
			SrcPort:   src,
			DstPort:   dst,
			Raw: fmt.Sprintf("%s IP %s.%d > %s.%d: UDP, length %d",
				ts.Format(utils.StampLayout+".000000"), srcHost, src, dstHost, dst, length),
		})
	}
}

func newPacketDataReader(r io.Reader) (packetDataReader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if binary.LittleEndian.Uint32(head) == pcapngMagic {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}
