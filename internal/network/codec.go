// Package network carries centroid frames in and track identities out over
// UDP, and replays recorded centroid traffic from PCAP captures.
package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

// Centroid datagrams are a packed array of little-endian float32 x, y, z
// triplets, one per observation, in observation order.
const centroidSize = 12

// MaxCentroidsPerDatagram keeps a centroid datagram within a single
// unfragmented UDP payload on a standard 1500-byte MTU.
const MaxCentroidsPerDatagram = 1472 / centroidSize

// DecodeCentroids decodes a centroid datagram. Trailing bytes that do not
// form a whole triplet are counted as one malformed point.
func DecodeCentroids(payload []byte) (points []r3.Vec, malformed int) {
	n := len(payload) / centroidSize
	points = make([]r3.Vec, n)
	for i := range points {
		b := payload[i*centroidSize:]
		points[i] = r3.Vec{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))),
		}
	}
	if len(payload)%centroidSize != 0 {
		malformed = 1
	}
	return points, malformed
}

// EncodeCentroids is the inverse of DecodeCentroids.
func EncodeCentroids(points []r3.Vec) []byte {
	buf := make([]byte, len(points)*centroidSize)
	for i, p := range points {
		b := buf[i*centroidSize:]
		binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(float32(p.Z)))
	}
	return buf
}

// Identity datagram layout (little-endian):
//
//	frame  uint64
//	count  uint32
//	count × { id int64, obs int32 }   obs is -1 when the track is unmatched
const (
	identityHeaderSize = 12
	identityEntrySize  = 12
)

// ErrShortIdentity is returned when an identity datagram is truncated.
var ErrShortIdentity = errors.New("identity datagram truncated")

// Identity is one track's identity and match in a published frame.
type Identity struct {
	ID    int64
	Match tracking.Match
}

// IdentityFrame is the decoded form of an identity datagram.
type IdentityFrame struct {
	Frame      uint64
	Identities []Identity
}

// EncodeIdentities packs the per-track identities of a frame result.
func EncodeIdentities(result tracking.FrameResult) []byte {
	buf := make([]byte, identityHeaderSize+len(result.Tracks)*identityEntrySize)
	binary.LittleEndian.PutUint64(buf[0:8], result.Frame)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(result.Tracks)))
	for i, tr := range result.Tracks {
		b := buf[identityHeaderSize+i*identityEntrySize:]
		binary.LittleEndian.PutUint64(b[0:8], uint64(tr.ID))
		binary.LittleEndian.PutUint32(b[8:12], uint32(int32(tr.Match.Wire())))
	}
	return buf
}

// DecodeIdentities parses an identity datagram.
func DecodeIdentities(payload []byte) (IdentityFrame, error) {
	if len(payload) < identityHeaderSize {
		return IdentityFrame{}, fmt.Errorf("%w: %d byte header", ErrShortIdentity, len(payload))
	}
	out := IdentityFrame{Frame: binary.LittleEndian.Uint64(payload[0:8])}
	count := int(binary.LittleEndian.Uint32(payload[8:12]))
	if want := identityHeaderSize + count*identityEntrySize; len(payload) < want {
		return IdentityFrame{}, fmt.Errorf("%w: have %d bytes, need %d for %d tracks", ErrShortIdentity, len(payload), want, count)
	}
	out.Identities = make([]Identity, count)
	for i := range out.Identities {
		b := payload[identityHeaderSize+i*identityEntrySize:]
		obs := int32(binary.LittleEndian.Uint32(b[8:12]))
		m := tracking.Unmatched()
		if obs >= 0 {
			m = tracking.Matched(int(obs))
		}
		out.Identities[i] = Identity{ID: int64(binary.LittleEndian.Uint64(b[0:8])), Match: m}
	}
	return out, nil
}
