package network

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/cluster-tracker/internal/ingest"
)

// PCAPReplayConfig configures replay of a centroid capture.
type PCAPReplayConfig struct {
	// UDPPort selects datagrams by source or destination port. Zero keeps
	// every UDP datagram.
	UDPPort int
	// SpeedMultiplier paces replay against capture timestamps
	// (1.0 = real-time, 2.0 = 2x speed). Zero replays as fast as possible.
	SpeedMultiplier float64
	Stats           *PacketStats
}

// PCAPSummary reports what a replay did.
type PCAPSummary struct {
	Packets  int // Link-layer packets read
	Frames   int // Centroid datagrams pushed
	Points   int
	Duration time.Duration // Capture time spanned by the pushed frames
}

// FrameWaiter accepts frames, waiting for room instead of evicting.
// *ingest.FrameQueue implements it.
type FrameWaiter interface {
	PushWait(ctx context.Context, f ingest.Frame) (uint64, error)
}

// packetReader is satisfied by pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

const pcapngMagic = 0x0A0D0D0A

// ReadPCAPFile replays centroid datagrams from a pcap or pcapng file.
func ReadPCAPFile(ctx context.Context, path string, queue FrameWaiter, cfg PCAPReplayConfig) (PCAPSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCAPSummary{}, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return ReadPCAP(ctx, f, queue, cfg)
}

// ReadPCAP replays centroid datagrams from a capture stream. Each UDP
// payload becomes one frame stamped with its capture time. Replay waits
// for the queue to make room, so every selected datagram reaches it.
func ReadPCAP(ctx context.Context, r io.Reader, queue FrameWaiter, cfg PCAPReplayConfig) (PCAPSummary, error) {
	src, err := openCapture(r)
	if err != nil {
		return PCAPSummary{}, err
	}

	var summary PCAPSummary
	var first time.Time
	wallStart := time.Now()
	source := gopacket.NewPacketSource(src, src.LinkType())
	for {
		if err := ctx.Err(); err != nil {
			logf("PCAP replay stopping due to context cancellation (processed %d packets)", summary.Packets)
			return summary, err
		}
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			logf("PCAP replay complete: %d packets, %d frames, %d points", summary.Packets, summary.Frames, summary.Points)
			return summary, nil
		}
		if err != nil {
			return summary, fmt.Errorf("reading packet %d: %w", summary.Packets+1, err)
		}
		summary.Packets++

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if cfg.UDPPort != 0 && int(udp.DstPort) != cfg.UDPPort && int(udp.SrcPort) != cfg.UDPPort {
			continue
		}

		ts := packet.Metadata().Timestamp
		if first.IsZero() {
			first = ts
		}
		if cfg.SpeedMultiplier > 0 {
			due := wallStart.Add(time.Duration(float64(ts.Sub(first)) / cfg.SpeedMultiplier))
			if err := sleepUntil(ctx, due); err != nil {
				return summary, err
			}
		}
		points, malformed := DecodeCentroids(udp.Payload)
		if cfg.Stats != nil {
			cfg.Stats.AddPacket(len(udp.Payload), len(points), malformed)
		}
		if queue != nil {
			frame := ingest.Frame{Received: ts, Observations: points, Malformed: malformed}
			if _, err := queue.PushWait(ctx, frame); err != nil {
				return summary, fmt.Errorf("queueing frame %d: %w", summary.Frames+1, err)
			}
		}
		summary.Frames++
		summary.Points += len(points)
		summary.Duration = ts.Sub(first)
	}
}

func openCapture(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to open pcapng stream: %w", err)
		}
		return ng, nil
	}
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap stream: %w", err)
	}
	return pr, nil
}

func sleepUntil(ctx context.Context, due time.Time) error {
	d := time.Until(due)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
