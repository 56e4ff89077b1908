package torrent

import (
	"fmt"
	"io"
)

// Framer reassembles discrete peer-protocol messages from a raw byte stream
// of possibly-concatenated, possibly-split reads. It recognizes exactly the
// three accumulation sizes an honest peer following the request-one-block
// convention produces: a bare control frame (5 bytes), a lone piece message
// (BlockSize+13 bytes), or a control frame immediately followed by a piece
// message (BlockSize+18 bytes), the shape a peer sends when it toggles
// choke state right before serving a block.
//
// Framer does not attempt general streaming reassembly: a split read keeps
// accumulating, and an accumulation that grows past the largest of those
// three sizes is a buffer overflow. A single overflow is transient —
// the caller re-enqueues the current piece and moves on to the next index
// on the same connection, folding the event into the session's ordinary
// fault budget rather than tearing down the connection outright.
type Framer struct {
	buf []byte
}

const (
	controlFrameSize = 5
	pieceFrameSize   = BlockSize + 13
	coalescedSize    = BlockSize + 18
	overflowSize     = BlockSize + 18
)

// NewFramer allocates a Framer with its reusable accumulation buffer sized
// to hold one full piece response plus the slack needed to detect overflow.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, overflowSize)}
}

// FrameEvent is one decoded message observed while accumulating a read.
type FrameEvent struct {
	Choked  bool
	Payload []byte // non-nil iff the event carries piece block data
}

// --------------------------------------------------------------------------------------------- //

/*
ReadFrame accumulates bytes from r until one of the three recognized message
shapes completes, then decodes it into one or two FrameEvents (two only for
the coalesced control+piece case). It returns ErrBufferOverflow if the
accumulated byte count exceeds every recognized shape: the peer sent more
than one block's worth of data for a single request, which this framer's
fixed accumulation sizes can't parse, but the connection itself is still
fine to keep reading from for the next request.

Parameters:
  - r: The peer connection to read from.

Returns:
  - []FrameEvent: one event, or two for a coalesced control+piece read.
  - error: ErrBufferOverflow on overflow, or the underlying read error.
*/
func (f *Framer) ReadFrame(r io.Reader) ([]FrameEvent, error) {
	f.buf = f.buf[:0]
	// One byte of slack past the largest recognized shape, so a single
	// read that overruns it is seen as an overflow rather than stopping
	// exactly on coalescedSize.
	chunk := make([]byte, overflowSize+1)

	for {
		n, err := r.Read(chunk)
		if err != nil {
			return nil, err
		}

		f.buf = append(f.buf, chunk[:n]...)
		got := len(f.buf)

		switch {
		case got == controlFrameSize:
			choked, _, err := readMessage(f.buf[:got])
			if err != nil {
				return nil, err
			}

			return []FrameEvent{{Choked: choked}}, nil

		case got == pieceFrameSize:
			choked, payload, err := readMessage(f.buf[:got])
			if err != nil {
				return nil, err
			}

			return []FrameEvent{{Choked: choked, Payload: payload}}, nil

		case got == coalescedSize:
			choked1, _, err := readMessage(f.buf[:controlFrameSize])
			if err != nil {
				return nil, err
			}

			choked2, payload, err := readMessage(f.buf[controlFrameSize:got])
			if err != nil {
				return nil, err
			}

			return []FrameEvent{
				{Choked: choked1},
				{Choked: choked2, Payload: payload},
			}, nil

		case got > overflowSize:
			return nil, ErrBufferOverflow
		}

		// got is one of the other in-between counts (a split read):
		// loop and keep accumulating.
	}
}

// ErrBufferOverflow is returned when a single message read overruns every
// shape the Framer recognizes.
var ErrBufferOverflow = fmt.Errorf("framer: buffer overflow")
