package torrent

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessageUnchoke(t *testing.T) {
	buf := UnchokeMsg()

	require.Len(t, buf, 5)
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(buf[0:4]))
	assert.Equal(t, byte(MsgUnchoke), buf[4])
}

func TestEncodeMessageRequest(t *testing.T) {
	buf := RequestMsg(3, 16384, 16384)

	require.Len(t, buf, 4+13)
	assert.Equal(t, uint32(13), binary.BigEndian.Uint32(buf[0:4]))
	assert.Equal(t, byte(MsgRequest), buf[4])
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(buf[5:9]))
	assert.Equal(t, uint32(16384), binary.BigEndian.Uint32(buf[9:13]))
	assert.Equal(t, uint32(16384), binary.BigEndian.Uint32(buf[13:17]))
}

func TestReadMessageChoke(t *testing.T) {
	frame := encodeMessage(MsgChoke, nil)

	choked, payload, err := readMessage(frame)
	require.NoError(t, err)
	assert.True(t, choked)
	assert.Nil(t, payload)
}

func TestReadMessagePieceStripsHeader(t *testing.T) {
	block := []byte{0xAA, 0xBB, 0xCC}

	payload := make([]byte, 8+len(block))
	binary.BigEndian.PutUint32(payload[0:4], 7)    // index
	binary.BigEndian.PutUint32(payload[4:8], 0)    // begin
	copy(payload[8:], block)

	frame := encodeMessage(MsgPiece, payload)

	choked, data, err := readMessage(frame)
	require.NoError(t, err)
	assert.False(t, choked)
	assert.Equal(t, block, data)
}

func TestReadMessageLengthMismatch(t *testing.T) {
	frame := encodeMessage(MsgUnchoke, nil)
	frame = append(frame, 0xFF) // corrupt: trailing byte not accounted for

	_, _, err := readMessage(frame)
	assert.Error(t, err)
}

func TestReadMessageUnknownID(t *testing.T) {
	frame := encodeMessage(MessageID(200), nil)

	_, _, err := readMessage(frame)
	assert.Error(t, err)
}

func TestReadMessageTooShort(t *testing.T) {
	_, _, err := readMessage([]byte{0, 0, 0})
	assert.Error(t, err)
}
