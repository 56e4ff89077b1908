package torrent

import "os"

// TorrentFile represents a root dictionary of .torrent file
type TorrentFile struct {
	Announce     string                 `bencode:"announce"`
	AnnounceList [][]string             `bencode:"announce-list"`
	Comment      string                 `bencode:"comment"`
	CreatedBy    string                 `bencode:"created by"`
	CreationDate int64                  `bencode:"creation date"`
	Encoding     string                 `bencode:"encoding"`
	Info         TorrentInfo            `bencode:"info"`
	Nodes        [][]interface{}        `bencode:"nodes"`
	URLList      []string               `bencode:"url-list"`
	HTTPSeeds    []string               `bencode:"httpseeds"`
	Publisher    string                 `bencode:"publisher"`
	PublisherURL string                 `bencode:"publisher-url"`
	Source       string                 `bencode:"source"`
	Signature    string                 `bencode:"signature"`
	Custom       map[string]interface{} `bencode:"-"`
}

// TorrentInfo represents an `info` dictionary in .torrent file
type TorrentInfo struct {
	PieceLength int64                  `bencode:"piece length"`
	Pieces      string                 `bencode:"pieces"`
	Name        string                 `bencode:"name"`
	Length      int64                  `bencode:"length"`
	Files       []TorrentFileEntry     `bencode:"files"`
	MD5Sum      string                 `bencode:"md5sum"`
	Private     int                    `bencode:"private"`
	Source      string                 `bencode:"source"`
	MetaVersion int                    `bencode:"meta version"`
	FileTree    map[string]interface{} `bencode:"file tree"`
	PieceLayers map[string]string      `bencode:"piece layers"`
	PiecesRoot  string                 `bencode:"pieces root"`
	Custom      map[string]interface{} `bencode:"-"`

	// InfoHash is computed independently of the struct decode, since
	// bencode-go discards the raw bytes of the sub-dictionary it reads.
	// See extractInfoBytes in parse.go.
	InfoHash [20]byte `bencode:"-"`
}

// TorrentFileEntry represents information about a file in a multi-file torrent
type TorrentFileEntry struct {
	Length     int64                  `bencode:"length"`
	Path       []string               `bencode:"path"`
	MD5Sum     string                 `bencode:"md5sum"`
	PiecesRoot string                 `bencode:"pieces root"`
	Custom     map[string]interface{} `bencode:"-"`
}

// FileInfo is a flattened, offset-resolved view of one output file on disk,
// built by BuildFileInfo from TorrentInfo.Files (or the single-file
// Length/Name for a single-file torrent).
type FileInfo struct {
	Path   string
	Length int64
	Offset int64
	Handle *os.File
}

// TorrentData is the read-only view of a parsed torrent the piece-exchange
// engine depends on: piece length, ordered piece hashes, and the total
// content size. It never changes once ExtractData returns, so every session
// goroutine shares it by pointer without a lock.
type TorrentData struct {
	PieceLength int64
	TotalLength int64
	Pieces      [][20]byte
	Name        string
}

// NumPieces is the piece count implied by the pieces list.
func (td *TorrentData) NumPieces() int {
	return len(td.Pieces)
}

// PieceLen returns the exact byte length of piece i, accounting for the
// final piece being shorter than PieceLength whenever TotalLength isn't an
// exact multiple of it.
func (td *TorrentData) PieceLen(i int) int64 {
	if i == len(td.Pieces)-1 {
		if rem := td.TotalLength % td.PieceLength; rem != 0 {
			return rem
		}
	}
	return td.PieceLength
}
