package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cluster-tracker/internal/ingest"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

func TestIdentityForwarder_Sends(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	fwd, err := NewIdentityForwarder(pc.LocalAddr().String(), 4, nil, time.Second)
	require.NoError(t, err)
	defer fwd.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fwd.Start(ctx)

	result := tracking.FrameResult{
		Frame:  3,
		Tracks: []tracking.TrackReport{{ID: 1, Match: tracking.Matched(0)}, {ID: 2}},
	}
	require.NoError(t, fwd.HandleFrame(ingest.Frame{Seq: 3}, result))

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	got, err := DecodeIdentities(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Frame)
	require.Len(t, got.Identities, 2)
	assert.Equal(t, int64(1), got.Identities[0].ID)
	assert.Equal(t, tracking.Matched(0), got.Identities[0].Match)
	assert.False(t, got.Identities[1].Match.IsMatched())
}

func TestIdentityForwarder_DropsWhenFull(t *testing.T) {
	t.Parallel()

	stats := NewPacketStats(nil)
	fwd, err := NewIdentityForwarder("127.0.0.1:9", 1, stats, time.Second)
	require.NoError(t, err)
	defer fwd.Close()

	// Not started, so nothing drains the buffer.
	for i := 0; i < 3; i++ {
		require.NoError(t, fwd.HandleFrame(ingest.Frame{}, tracking.FrameResult{Frame: uint64(i)}))
	}
	assert.Equal(t, int64(2), stats.GetAndReset().Dropped)
}

func TestIdentityForwarder_BadAddress(t *testing.T) {
	t.Parallel()

	_, err := NewIdentityForwarder("bad address", 1, nil, 0)
	assert.Error(t, err)
}
