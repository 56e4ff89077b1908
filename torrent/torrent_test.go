package torrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTorrentDataNumPieces(t *testing.T) {
	td := &TorrentData{Pieces: make([][20]byte, 7)}
	assert.Equal(t, 7, td.NumPieces())
}

func TestTorrentDataPieceLenEvenDivision(t *testing.T) {
	td := &TorrentData{PieceLength: 100, TotalLength: 300, Pieces: make([][20]byte, 3)}

	assert.Equal(t, int64(100), td.PieceLen(0))
	assert.Equal(t, int64(100), td.PieceLen(1))
	assert.Equal(t, int64(100), td.PieceLen(2))
}

func TestTorrentDataPieceLenShortFinalPiece(t *testing.T) {
	td := &TorrentData{PieceLength: 100, TotalLength: 250, Pieces: make([][20]byte, 3)}

	assert.Equal(t, int64(100), td.PieceLen(0))
	assert.Equal(t, int64(100), td.PieceLen(1))
	assert.Equal(t, int64(50), td.PieceLen(2))
}
