package torrent

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackpal/bencode-go"
)

// --------------------------------------------------------------------------------------------- //

/*
extractInfoBytes extracts the info dictionary bytes from a bencoded torrent file.
It locates the "4:info" prefix and walks the bencode grammar to find the
matching closing 'e' of that dictionary, since bencode-go's struct decoder
does not expose the raw bytes it consumed for a nested value.

Parameters:
  - data: Byte slice containing the bencoded torrent file data.

Returns:
  - []byte: Byte slice of the info dictionary if found and valid.
  - error: Non-nil if the info dictionary is not found, unterminated, or malformed.
*/
func extractInfoBytes(data []byte) ([]byte, error) {
	idx := bytes.Index(data, []byte("4:info"))
	if idx < 0 {
		return nil, fmt.Errorf("torrent: no \"4:info\" prefix found")
	}

	start := idx + len("4:info")

	depth := 0
	for i := start; i < len(data); i++ {
		b := data[i]

		switch b {
		case 'd', 'l':
			depth++
		case 'e':
			depth--

			if depth == 0 {
				return data[start : i+1], nil
			}

		case 'i':
			j := i + 1
			for ; j < len(data) && data[j] != 'e'; j++ {
			}

			if j >= len(data) {
				return nil, fmt.Errorf("torrent: unterminated integer at %d", i)
			}

			i = j

		default:
			if b >= '0' && b <= '9' {
				j := i

				for ; j < len(data) && data[j] >= '0' && data[j] <= '9'; j++ {
				}

				if j < len(data) && data[j] == ':' {
					length, err := strconv.Atoi(string(data[i:j]))
					if err != nil {
						return nil, fmt.Errorf("torrent: invalid string length at %d-%d", i, j)
					}

					j++

					i = j + length - 1
				}
			}
		}
	}

	return nil, fmt.Errorf("torrent: unterminated info dict")
}

// --------------------------------------------------------------------------------------------- //

/*
computeInfoHash computes the SHA-1 hash of the info dictionary from raw
metainfo bytes.

Parameters:
  - data: Raw bytes of the .torrent metainfo file.

Returns:
  - [20]byte: SHA-1 hash of the info dictionary.
  - error: Non-nil if the info dictionary cannot be located.
*/
func computeInfoHash(data []byte) ([20]byte, error) {
	infoBytes, err := extractInfoBytes(data)
	if err != nil {
		return [20]byte{}, fmt.Errorf("extractInfoBytes: %w", err)
	}

	return sha1.Sum(infoBytes), nil
}

// --------------------------------------------------------------------------------------------- //

/*
ParseFile loads and parses a .torrent file at path, populating a TorrentFile
and computing its info hash.

Parameters:
  - path: Path to the .torrent file on disk.

Returns:
  - *TorrentFile: Pointer to the parsed torrent structure.
  - error: Non-nil if reading, decoding, or hashing fails.
*/
func ParseFile(path string) (*TorrentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	var tf TorrentFile
	if err := bencode.Unmarshal(bytes.NewReader(data), &tf); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}

	hash, err := computeInfoHash(data)
	if err != nil {
		return nil, fmt.Errorf("computing info hash for %q: %w", path, err)
	}
	tf.Info.InfoHash = hash

	if len(tf.Info.Pieces)%20 != 0 {
		return nil, fmt.Errorf("torrent %q: invalid pieces length %d", path, len(tf.Info.Pieces))
	}

	log.Printf("[INFO]\tparsed torrent %q: name=%q infoHash=%x pieces=%d\n",
		path, tf.Info.Name, tf.Info.InfoHash, len(tf.Info.Pieces)/20)

	return &tf, nil
}

// --------------------------------------------------------------------------------------------- //

/*
ExtractData converts a parsed TorrentFile into the read-only TorrentData the
piece-exchange engine operates on: piece length, ordered piece hashes, and
total content size.

Parameters:
  - tf: The parsed TorrentFile.

Returns:
  - *TorrentData: read-only torrent metadata.
  - error: Non-nil if the pieces field is malformed.
*/
func ExtractData(tf *TorrentFile) (*TorrentData, error) {
	pieces := tf.Info.Pieces
	if len(pieces)%20 != 0 {
		return nil, fmt.Errorf("invalid pieces length: %d", len(pieces))
	}

	numPieces := len(pieces) / 20
	hashes := make([][20]byte, numPieces)
	for i := 0; i < numPieces; i++ {
		copy(hashes[i][:], pieces[i*20:(i+1)*20])
	}

	total, err := TotalSize(tf)
	if err != nil {
		return nil, err
	}

	return &TorrentData{
		PieceLength: tf.Info.PieceLength,
		TotalLength: int64(total),
		Pieces:      hashes,
		Name:        tf.Info.Name,
	}, nil
}

// --------------------------------------------------------------------------------------------- //

/*
TotalSize calculates the total size of the torrent's content. For single-file
torrents it returns the file length; for multi-file torrents it sums the
individual file lengths.

Parameters:
  - tf: The parsed TorrentFile.

Returns:
  - uint64: Total size of the torrent content in bytes.
  - error: Always nil (kept for interface symmetry with the rest of the package).
*/
func TotalSize(tf *TorrentFile) (uint64, error) {
	if len(tf.Info.Files) == 0 {
		return uint64(tf.Info.Length), nil
	}

	var total uint64
	for _, file := range tf.Info.Files {
		total += uint64(file.Length)
	}

	return total, nil
}

// --------------------------------------------------------------------------------------------- //

/*
BuildFileInfo constructs the FileInfo slice describing where each output file
lives on disk and at which byte offset within the concatenated piece stream
it starts.

Parameters:
  - tf: The parsed TorrentFile.
  - outputDir: Directory under which files will be written.

Returns:
  - []FileInfo: Resolved file layout, offsets relative to the start of piece 0.
  - error: Non-nil if the torrent declares neither a length nor a files list.
*/
func BuildFileInfo(tf *TorrentFile, outputDir string) ([]FileInfo, error) {
	if len(tf.Info.Files) == 0 {
		if tf.Info.Length == 0 {
			return nil, fmt.Errorf("torrent %q declares no length and no files", tf.Info.Name)
		}

		return []FileInfo{{
			Path:   filepath.Join(outputDir, tf.Info.Name),
			Length: tf.Info.Length,
			Offset: 0,
		}}, nil
	}

	baseDir := filepath.Join(outputDir, tf.Info.Name)
	files := make([]FileInfo, 0, len(tf.Info.Files))

	var offset int64
	for _, entry := range tf.Info.Files {
		parts := append([]string{baseDir}, entry.Path...)
		files = append(files, FileInfo{
			Path:   filepath.Join(parts...),
			Length: entry.Length,
			Offset: offset,
		})

		offset += entry.Length
	}

	return files, nil
}
