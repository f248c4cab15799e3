package extractors

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/dmr-correlate/internal/models"
)

var mmdvmPorts = PortFilter{RequestPort: 62031, ResponsePort: 62032}

type fakeDumper struct {
	out []byte
	err error
}

func (f *fakeDumper) Dump(ctx context.Context, path string) ([]byte, error) {
	return f.out, f.err
}

func TestPacketExtractorParse(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantKept  bool
		direction models.Direction
		length    int
	}{
		{
			name:      "request to response is to target",
			line:      "2024-01-15 10:30:45.123456 IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55",
			wantKept:  true,
			direction: models.DirectionToTarget,
			length:    55,
		},
		{
			name:      "response to request is from target",
			line:      "2024-01-15 10:30:45.200000 IP 127.0.0.1.62032 > 127.0.0.1.62031: UDP, length 53",
			wantKept:  true,
			direction: models.DirectionFromTarget,
			length:    53,
		},
		{
			name:      "named host without -n",
			line:      "2024-01-15 10:30:45.300000 IP localhost.62031 > localhost.62032: UDP, length 12",
			wantKept:  true,
			direction: models.DirectionToTarget,
			length:    12,
		},
		{
			name:      "single matching port is from target",
			line:      "2024-01-15 10:30:45.400000 IP 10.0.0.2.40000 > 127.0.0.1.62031: UDP, length 8",
			wantKept:  true,
			direction: models.DirectionFromTarget,
			length:    8,
		},
		{
			name:      "interface and direction prefix from -i any",
			line:      "2024-01-15 10:30:45.450000 lo    In  IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55",
			wantKept:  true,
			direction: models.DirectionToTarget,
			length:    55,
		},
		{
			name:      "outbound prefix on ipv6",
			line:      "2024-01-15 10:30:45.460000 eth0  Out IP6 ::1.62032 > ::1.62031: UDP, length 53",
			wantKept:  true,
			direction: models.DirectionFromTarget,
			length:    53,
		},
		{
			name:     "unrelated ports",
			line:     "2024-01-15 10:30:45.500000 IP 10.0.0.2.53 > 10.0.0.3.5353: UDP, length 40",
			wantKept: false,
		},
		{
			name:     "malformed line on port pair",
			line:     "garbage 127.0.0.1.62031 nothing useful",
			wantKept: false,
		},
	}

	extractor := NewPacketExtractor(nil, mmdvmPorts, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := extractor.Parse(strings.NewReader(tt.line + "\n"))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if !tt.wantKept {
				if len(set.Packets) != 0 {
					t.Fatalf("expected line to be dropped, got %+v", set.Packets)
				}
				return
			}
			if len(set.Packets) != 1 {
				t.Fatalf("expected one packet, got %d", len(set.Packets))
			}
			p := set.Packets[0]
			if p.Direction != tt.direction {
				t.Errorf("Direction = %s, want %s", p.Direction, tt.direction)
			}
			if p.Length != tt.length {
				t.Errorf("Length = %d, want %d", p.Length, tt.length)
			}
			if p.Raw != tt.line {
				t.Errorf("Raw = %q", p.Raw)
			}
		})
	}
}

func TestPacketExtractorMicrosecondTimestamp(t *testing.T) {
	extractor := NewPacketExtractor(nil, mmdvmPorts, nil)
	set, err := extractor.Parse(strings.NewReader("2024-01-15 10:30:45.000123 IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 45, 123000, time.UTC)
	if !set.Packets[0].Timestamp.Equal(want) {
		t.Fatalf("Timestamp = %v, want %v", set.Packets[0].Timestamp, want)
	}
}

func TestPacketExtractorCountsSkipped(t *testing.T) {
	input := strings.Join([]string{
		"reading from file capture.pcap, link-type EN10MB (Ethernet)",
		"2024-01-15 10:30:45.100000 IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55",
		"truncated 127.0.0.1.62032 >",
		"",
	}, "\n")
	set, err := NewPacketExtractor(nil, mmdvmPorts, nil).Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(set.Packets) != 1 || set.Skipped != 1 {
		t.Fatalf("expected 1 packet and 1 skipped, got %d/%d", len(set.Packets), set.Skipped)
	}
}

func TestPacketExtractorAcceptsAnyInterfaceCapture(t *testing.T) {
	input := strings.Join([]string{
		"2024-01-15 10:30:45.100000 lo    In  IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55",
		"2024-01-15 10:30:45.160000 IP 127.0.0.1.62032 > 127.0.0.1.62031: UDP, length 55",
	}, "\n")
	set, err := NewPacketExtractor(nil, mmdvmPorts, nil).Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(set.Packets) != 2 || set.Skipped != 0 {
		t.Fatalf("expected 2 packets and 0 skipped, got %d/%d", len(set.Packets), set.Skipped)
	}
}

func TestPacketExtractorKeepsPartialOnDumpFailure(t *testing.T) {
	dumper := &fakeDumper{
		out: []byte("2024-01-15 10:30:45.100000 IP 127.0.0.1.62031 > 127.0.0.1.62032: UDP, length 55\n"),
		err: errors.New("pcap_loop: truncated dump file"),
	}
	set, err := NewPacketExtractor(dumper, mmdvmPorts, nil).Extract(context.Background(), "capture.pcap")
	if err == nil {
		t.Fatalf("expected dump failure to surface")
	}
	if len(set.Packets) != 1 {
		t.Fatalf("expected partial packets to survive, got %d", len(set.Packets))
	}
}

func TestPacketExtractorNoDumper(t *testing.T) {
	if _, err := NewPacketExtractor(nil, mmdvmPorts, nil).Extract(context.Background(), "x"); err == nil {
		t.Fatalf("expected error without dumper")
	}
}
