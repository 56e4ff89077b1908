package torrent

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// DownloadStatus is the mutex-guarded progress counter for one download. The
// mutex protects only the read-modify-write of the counters; the logging
// side effect may interleave with other log lines from concurrent sessions.
type DownloadStatus struct {
	mu               sync.Mutex
	totalPieces      uint32
	piecesDownloaded uint32
	bar              *progressbar.ProgressBar
}

// NewDownloadStatus builds a status tracker for a download of totalPieces
// pieces. When stdout is a terminal, progress is additionally rendered as a
// live bar; when it isn't (e.g. piped, or under test), the bar is disabled
// and only the mandated log line is emitted.
func NewDownloadStatus(totalPieces uint32) *DownloadStatus {
	ds := &DownloadStatus{totalPieces: totalPieces}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		ds.bar = progressbar.NewOptions(int(totalPieces),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	return ds
}

// Increment records one more verified piece, logging the mandated
// "[done/total, pct%] Piece <i> downloaded" line. It returns the updated
// pieces-downloaded count.
//
// Callers must only invoke Increment once per piece index. The
// first-verified-delivery-wins accounting is the session's
// responsibility: it must not re-deliver an index it has already had
// accepted.
func (ds *DownloadStatus) Increment(pieceIndex int) uint32 {
	ds.mu.Lock()
	ds.piecesDownloaded++
	done := ds.piecesDownloaded
	total := ds.totalPieces
	ds.mu.Unlock()

	pct := 0
	if total > 0 {
		pct = int(100 * done / total)
	}

	log.Printf(colorstring.Color("[green][INFO][reset]\t[%d/%d, %d%%] Piece %d downloaded\n"),
		done, total, pct, pieceIndex)

	if ds.bar != nil {
		ds.bar.Add(1)
	}

	return done
}

// Snapshot returns the current (downloaded, total) pair.
func (ds *DownloadStatus) Snapshot() (downloaded, total uint32) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	return ds.piecesDownloaded, ds.totalPieces
}

// Done reports whether every piece has been accounted for.
func (ds *DownloadStatus) Done() bool {
	d, t := ds.Snapshot()
	return d >= t
}
