package torrent

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentEncodeUpperIsUppercase(t *testing.T) {
	infoHash := [20]byte{0x12, 0xab, 0xCD, 0xEF, 0x00, 0x01}
	encoded := percentEncodeUpper(infoHash[:6])

	assert.Equal(t, "%12%AB%CD%EF%00%01", encoded)
}

func TestPercentEncodeUpperRoundTrips(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i * 13)
	}

	encoded := percentEncodeUpper(raw)

	decoded, err := url.QueryUnescape(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, []byte(decoded))
}

func TestParseCompactPeers(t *testing.T) {
	raw := []byte{
		192, 168, 1, 1, 0x1A, 0xE1, // 192.168.1.1:6881
		10, 0, 0, 5, 0x1A, 0xE2, // 10.0.0.5:6882
	}

	peers, err := ParseCompactPeers(string(raw))
	require.NoError(t, err)
	require.Len(t, peers, 2)

	assert.Equal(t, "192.168.1.1:6881", peers[0].String())
	assert.Equal(t, "10.0.0.5:6882", peers[1].String())
}

func TestParseCompactPeersInvalidLength(t *testing.T) {
	_, err := ParseCompactPeers(string([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestParseCompactPeersEmpty(t *testing.T) {
	peers, err := ParseCompactPeers("")
	require.NoError(t, err)
	assert.Empty(t, peers)
}
