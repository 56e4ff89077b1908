package torrent

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalTorrentFile hand-encodes a single-file .torrent's bencode
// bytes, grounded on the dict/string/integer grammar extractInfoBytes walks.
func buildMinimalTorrentFile(name string, pieceLength, length int64, pieces [][20]byte) []byte {
	var piecesBuf bytes.Buffer
	for _, p := range pieces {
		piecesBuf.Write(p[:])
	}

	info := fmt.Sprintf("d6:lengthi%de4:name%d:%s12:piece lengthi%de6:pieces%d:%se",
		length, len(name), name, pieceLength, piecesBuf.Len(), piecesBuf.String())

	announce := "http://tracker.example/announce"
	full := fmt.Sprintf("d8:announce%d:%s4:info%se", len(announce), announce, info)

	return []byte(full)
}

func TestExtractInfoBytes(t *testing.T) {
	pieces := [][20]byte{sha1.Sum([]byte("a")), sha1.Sum([]byte("b"))}
	raw := buildMinimalTorrentFile("file.bin", 100, 200, pieces)

	infoBytes, err := extractInfoBytes(raw)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(infoBytes, []byte("d6:length")))
	assert.True(t, bytes.HasSuffix(infoBytes, []byte("e")))
}

func TestExtractInfoBytesMissing(t *testing.T) {
	_, err := extractInfoBytes([]byte("d8:announce4:teste"))
	assert.Error(t, err)
}

func TestComputeInfoHashMatchesManualExtraction(t *testing.T) {
	pieces := [][20]byte{sha1.Sum([]byte("a"))}
	raw := buildMinimalTorrentFile("file.bin", 50, 50, pieces)

	infoBytes, err := extractInfoBytes(raw)
	require.NoError(t, err)

	hash, err := computeInfoHash(raw)
	require.NoError(t, err)
	assert.Equal(t, sha1.Sum(infoBytes), hash)
}

func TestParseFileRoundTrip(t *testing.T) {
	pieces := [][20]byte{sha1.Sum([]byte("piece-0")), sha1.Sum([]byte("piece-1"))}
	raw := buildMinimalTorrentFile("movie.mp4", 40, 80, pieces)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.torrent")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	tf, err := ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "movie.mp4", tf.Info.Name)
	assert.Equal(t, int64(80), tf.Info.Length)
	assert.Equal(t, int64(40), tf.Info.PieceLength)
	assert.Len(t, tf.Info.Pieces, 40)

	wantHash, err := computeInfoHash(raw)
	require.NoError(t, err)
	assert.Equal(t, wantHash, tf.Info.InfoHash)
}

func TestExtractDataFromParsedFile(t *testing.T) {
	pieces := [][20]byte{sha1.Sum([]byte("x")), sha1.Sum([]byte("y")), sha1.Sum([]byte("z"))}
	raw := buildMinimalTorrentFile("a.bin", 16, 40, pieces)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.torrent")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	tf, err := ParseFile(path)
	require.NoError(t, err)

	td, err := ExtractData(tf)
	require.NoError(t, err)

	assert.Equal(t, 3, td.NumPieces())
	assert.Equal(t, int64(16), td.PieceLength)
	assert.Equal(t, int64(40), td.TotalLength)
	assert.Equal(t, pieces, td.Pieces)
}

func TestBuildFileInfoSingleFile(t *testing.T) {
	pieces := [][20]byte{sha1.Sum([]byte("a"))}
	raw := buildMinimalTorrentFile("single.bin", 10, 30, pieces)

	dir := t.TempDir()
	path := filepath.Join(dir, "single.torrent")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	tf, err := ParseFile(path)
	require.NoError(t, err)

	files, err := BuildFileInfo(tf, "/out")
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, filepath.Join("/out", "single.bin"), files[0].Path)
	assert.Equal(t, int64(30), files[0].Length)
	assert.Equal(t, int64(0), files[0].Offset)
}
