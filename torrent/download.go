package torrent

import "fmt"

// Download parses the .torrent file at path, contacts its trackers, and
// downloads every piece into outputDir, writing progress to the standard
// logger as it goes. It is the single entry point main.go calls.
//
// Parameters:
//   - path: path to the .torrent metainfo file.
//   - outputDir: directory under which the torrent's file(s) are written.
//
// Returns:
//   - error: non-nil on metainfo parse failure, tracker hard failure, or
//     file-sink setup failure.
func Download(path, outputDir string) error {
	tf, err := ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing torrent: %w", err)
	}

	td, err := ExtractData(tf)
	if err != nil {
		return fmt.Errorf("extracting torrent data: %w", err)
	}

	files, err := BuildFileInfo(tf, outputDir)
	if err != nil {
		return fmt.Errorf("resolving output files: %w", err)
	}

	sink, err := NewFileSink(td.PieceLength, files)
	if err != nil {
		return fmt.Errorf("opening output files: %w", err)
	}
	defer sink.Close()

	peerID, err := GeneratePeerID()
	if err != nil {
		return fmt.Errorf("generating peer id: %w", err)
	}

	coord := NewCoordinator(tf, td, peerID, ListenPort, sink)

	return coord.Run()
}
