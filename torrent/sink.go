package torrent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// PieceSink is the downstream consumer of verified piece bytes. The core
// engine only guarantees that verified bytes are delivered with their
// index; writing them to disk is a separate concern behind this
// interface, so the engine can be driven by tests with an in-memory sink
// instead of a real filesystem.
type PieceSink interface {
	// Deliver records piece index's verified bytes. It returns true iff
	// this is the first verified delivery of that index: the first
	// verified delivery wins, and subsequent verifications must not
	// double-count. Implementations must make this check-and-set atomic
	// across concurrent callers.
	Deliver(index int, data []byte) (first bool)
}

// FileSink writes verified pieces to their file offsets across one or more
// on-disk files, supporting both single-file and multi-file torrent
// layouts.
type FileSink struct {
	mu        sync.Mutex
	pieceLen  int64
	files     []FileInfo
	delivered map[int]struct{}
}

// NewFileSink opens (creating/truncating) every file named in files and
// returns a ready-to-use sink. Callers must call Close when done.
func NewFileSink(pieceLen int64, files []FileInfo) (*FileSink, error) {
	opened := make([]FileInfo, len(files))

	for i, fi := range files {
		if err := os.MkdirAll(filepath.Dir(fi.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", fi.Path, err)
		}

		f, err := os.OpenFile(fi.Path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", fi.Path, err)
		}

		if err := f.Truncate(fi.Length); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncating %s: %w", fi.Path, err)
		}

		fi.Handle = f
		opened[i] = fi
	}

	return &FileSink{
		pieceLen:  pieceLen,
		files:     opened,
		delivered: make(map[int]struct{}),
	}, nil
}

// Deliver implements PieceSink.
func (fs *FileSink) Deliver(index int, data []byte) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, dup := fs.delivered[index]; dup {
		log.Printf("[INFO]\tpiece %d already written, skipping duplicate delivery\n", index)
		return false
	}
	fs.delivered[index] = struct{}{}

	pieceStart := int64(index) * fs.pieceLen
	pieceEnd := pieceStart + int64(len(data))

	for _, file := range fs.files {
		fileStart := file.Offset
		fileEnd := file.Offset + file.Length

		start := maxInt64(pieceStart, fileStart)
		end := minInt64(pieceEnd, fileEnd)
		if start >= end {
			continue
		}

		chunk := data[start-pieceStart : end-pieceStart]
		if _, err := file.Handle.WriteAt(chunk, start-file.Offset); err != nil {
			log.Printf("[ERROR]\twriting piece %d to %s: %v\n", index, file.Path, err)
		}
	}

	return true
}

// Close closes every underlying file handle.
func (fs *FileSink) Close() error {
	var firstErr error
	for _, file := range fs.files {
		if file.Handle == nil {
			continue
		}
		if err := file.Handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// MemorySink is a PieceSink that keeps verified pieces in memory, keyed by
// index. It exists for tests and for driving the engine without a
// filesystem.
type MemorySink struct {
	mu        sync.Mutex
	Pieces    map[int][]byte
	delivered map[int]struct{}
}

// NewMemorySink builds an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		Pieces:    make(map[int][]byte),
		delivered: make(map[int]struct{}),
	}
}

// Deliver implements PieceSink.
func (ms *MemorySink) Deliver(index int, data []byte) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, dup := ms.delivered[index]; dup {
		return false
	}

	ms.delivered[index] = struct{}{}
	cp := make([]byte, len(data))
	copy(cp, data)
	ms.Pieces[index] = cp

	return true
}
