package torrent

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader hands out data in fixed-size pieces across successive
// Read calls, simulating a peer connection whose reads split an
// otherwise-whole message across multiple syscalls.
type chunkedReader struct {
	data     []byte
	chunk    int
	consumed int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	remaining := len(c.data) - c.consumed
	if remaining == 0 {
		return 0, nil
	}

	n := c.chunk
	if n > remaining {
		n = remaining
	}
	if n > len(p) {
		n = len(p)
	}

	copy(p, c.data[c.consumed:c.consumed+n])
	c.consumed += n

	return n, nil
}

func pieceFrame(index, begin uint32, block []byte) []byte {
	payload := make([]byte, 8+len(block))
	binary.BigEndian.PutUint32(payload[0:4], index)
	binary.BigEndian.PutUint32(payload[4:8], begin)
	copy(payload[8:], block)

	return encodeMessage(MsgPiece, payload)
}

func TestFramerControlFrame(t *testing.T) {
	f := NewFramer()
	r := &chunkedReader{data: encodeMessage(MsgUnchoke, nil), chunk: 2}

	events, err := f.ReadFrame(r)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Choked)
	assert.Nil(t, events[0].Payload)
}

func TestFramerChokeFrame(t *testing.T) {
	f := NewFramer()
	r := &chunkedReader{data: encodeMessage(MsgChoke, nil), chunk: 5}

	events, err := f.ReadFrame(r)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Choked)
}

func TestFramerPieceFrameSplitAcrossReads(t *testing.T) {
	block := make([]byte, BlockSize)
	for i := range block {
		block[i] = byte(i)
	}

	f := NewFramer()
	r := &chunkedReader{data: pieceFrame(0, 0, block), chunk: 997}

	events, err := f.ReadFrame(r)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Choked)
	assert.Equal(t, block, events[0].Payload)
}

func TestFramerCoalescedControlAndPiece(t *testing.T) {
	block := make([]byte, BlockSize)
	data := append(encodeMessage(MsgChoke, nil), pieceFrame(1, 0, block)...)

	f := NewFramer()
	r := &chunkedReader{data: data, chunk: 4096}

	events, err := f.ReadFrame(r)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.True(t, events[0].Choked)
	assert.Nil(t, events[0].Payload)

	assert.False(t, events[1].Choked)
	assert.Equal(t, block, events[1].Payload)
}

func TestFramerOverflow(t *testing.T) {
	// One byte more than the largest recognized shape (coalescedSize).
	oversized := make([]byte, coalescedSize+1)

	f := NewFramer()
	r := &chunkedReader{data: oversized, chunk: coalescedSize + 1}

	_, err := f.ReadFrame(r)
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestFramerReusedAcrossReads(t *testing.T) {
	f := NewFramer()

	r1 := &chunkedReader{data: encodeMessage(MsgInterested, nil), chunk: 5}
	events, err := f.ReadFrame(r1)
	require.NoError(t, err)
	require.Len(t, events, 1)

	block := make([]byte, BlockSize)
	r2 := &chunkedReader{data: pieceFrame(2, 0, block), chunk: 8192}
	events, err = f.ReadFrame(r2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, block, events[0].Payload)
}
