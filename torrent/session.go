package torrent

import (
	"log"
	"net"
	"time"
)

const (
	readTimeout  = 20 * time.Second
	writeTimeout = 10 * time.Second

	maxFails       = 5
	maxTimesChoked = 4
)

// sessionState names the states of the per-peer state machine: handshake,
// bitfield wait, negotiate, request/download, terminated. It exists for
// logging/inspection; the control flow itself is a straight-line Go
// function, not a table-driven dispatcher, since a state this small reads
// better as code than as data.
type sessionState int

const (
	stateInit sessionState = iota
	stateBitfieldWait
	stateNegotiate
	stateRequesting
	stateDownloadPiece
	stateTerminated
)

// PeerSession drives one peer connection end to end: handshake, bitfield
// ingest, interest negotiation, and the request/receive/verify loop against
// the shared PieceQueue. One PeerSession is spawned per peer per announce
// cycle.
type PeerSession struct {
	addr     string
	infoHash [20]byte
	peerID   [20]byte
	td       *TorrentData
	queue    *PieceQueue
	status   *DownloadStatus
	sink     PieceSink

	id     string
	state  sessionState
	fails  uint8
	choked uint8

	conn   net.Conn
	field  Bitfield
	framer *Framer
}

// NewPeerSession constructs a session bound to one peer endpoint. Nothing
// network-related happens until Run is called.
func NewPeerSession(addr string, infoHash, peerID [20]byte, td *TorrentData, queue *PieceQueue, status *DownloadStatus, sink PieceSink) *PeerSession {
	return &PeerSession{
		addr:     addr,
		infoHash: infoHash,
		peerID:   peerID,
		td:       td,
		queue:    queue,
		status:   status,
		sink:     sink,
		id:       newCycleID(),
		state:    stateInit,
		framer:   NewFramer(),
	}
}

// --------------------------------------------------------------------------------------------- //

/*
Run executes the full session lifecycle: handshake, bitfield wait,
negotiate, then the requesting/download-piece loop until the queue drains or
a fatal condition terminates the session. It never returns an error. Every
failure is either transient (absorbed into fails/choked and reflected back
into the queue) or fatal-to-session (logged and the session simply ends);
nothing escapes to the coordinator.
*/
func (s *PeerSession) Run() {
	if err := s.handshake(); err != nil {
		log.Printf("[FAIL]\tsession %s (%s): handshake: %v\n", s.id, s.addr, err)
		s.state = stateTerminated
		return
	}
	defer s.conn.Close()

	s.state = stateBitfieldWait
	if err := s.waitBitfield(); err != nil {
		log.Printf("[FAIL]\tsession %s (%s): bitfield: %v\n", s.id, s.addr, err)
		s.state = stateTerminated
		return
	}

	s.state = stateNegotiate
	if err := s.negotiate(); err != nil {
		log.Printf("[FAIL]\tsession %s (%s): negotiate: %v\n", s.id, s.addr, err)
		s.state = stateTerminated
		return
	}

	s.state = stateRequesting
	s.downloadLoop()
	s.state = stateTerminated
}

func (s *PeerSession) handshake() error {
	conn, _, err := PerformHandshake(s.addr, s.infoHash, s.peerID)
	if err != nil {
		return err
	}

	s.conn = conn
	return nil
}

func (s *PeerSession) waitBitfield() error {
	s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	field, err := ReadBitfield(s.conn, s.td.NumPieces())
	if err != nil {
		return err
	}

	s.field = field
	return nil
}

func (s *PeerSession) negotiate() error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(UnchokeMsg()); err != nil {
		return err
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(InterestedMsg()); err != nil {
		return err
	}

	return nil
}

// --------------------------------------------------------------------------------------------- //

// downloadLoop implements the requesting/download-piece cycle: pop an
// index, skip (with fault accounting) if the peer lacks it, else request
// and assemble every block of the piece, verify, and account for the
// result, looping until the queue is drained or a fault budget is
// exhausted.
func (s *PeerSession) downloadLoop() {
	for {
		index, ok := s.queue.PopFront()
		if !ok {
			log.Printf("[INFO]\tsession %s (%s): queue drained\n", s.id, s.addr)
			return
		}

		if !s.field.Has(index) {
			s.queue.PushBack(index)
			s.fails++

			if s.fails == maxFails {
				log.Printf("[FAIL]\tsession %s (%s): fault budget exhausted on bitfield misses\n", s.id, s.addr)
				return
			}

			continue
		}

		s.state = stateDownloadPiece

		data, terminate := s.downloadPiece(index)
		if terminate {
			return
		}

		if data == nil {
			// re-enqueued for a transient reason (hash mismatch or
			// overflow); downloadPiece already accounted for it.
			s.state = stateRequesting
			continue
		}

		if first := s.sink.Deliver(index, data); first {
			s.status.Increment(index)
		}

		s.state = stateRequesting
	}
}

// downloadPiece requests and assembles every block of piece index. It
// returns (data, false) on a verified piece, (nil, false) to continue the
// outer loop after a transient re-enqueue, or (nil, true) if the session
// must terminate.
func (s *PeerSession) downloadPiece(index int) (data []byte, terminate bool) {
	pieceLen := s.td.PieceLen(index)
	numBlocks := int((pieceLen + BlockSize - 1) / BlockSize)

	piece := make([]byte, 0, pieceLen)
	overflowed := false

blocks:
	for b := 0; b < numBlocks; b++ {
		begin := int64(b) * BlockSize
		length := pieceLen - begin
		if length > BlockSize {
			length = BlockSize
		}

		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := s.conn.Write(RequestMsg(uint32(index), uint32(begin), uint32(length))); err != nil {
			log.Printf("[FAIL]\tsession %s (%s): sending request for piece %d: %v\n", s.id, s.addr, index, err)
			s.queue.PushBack(index)
			return nil, true
		}

		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		events, err := s.framer.ReadFrame(s.conn)

		if err == ErrBufferOverflow {
			// Transient: the peer overran the one-block-per-request shape
			// this framer recognizes for this one piece. Abandon the
			// current block loop and fall through to the same
			// fault-budget accounting as a hash mismatch; the connection
			// itself is still read from on the next piece.
			log.Printf("[ERROR]\tsession %s (%s): buffer overflow on piece %d\n", s.id, s.addr, index)
			overflowed = true
			break blocks
		}

		if err != nil {
			log.Printf("[FAIL]\tsession %s (%s): reading response for piece %d: %v\n", s.id, s.addr, index, err)
			s.queue.PushBack(index)
			return nil, true
		}

		for _, ev := range events {
			if ev.Choked {
				s.choked++
				if s.choked == maxTimesChoked {
					log.Printf("[FAIL]\tsession %s (%s): choked %d times, terminating\n", s.id, s.addr, s.choked)
					s.queue.PushBack(index)
					return nil, true
				}
			}

			if ev.Payload != nil {
				piece = append(piece, ev.Payload...)
			}
		}
	}

	if overflowed || !VerifyPiece(piece, s.td.Pieces[index]) {
		if !overflowed {
			log.Printf("[ERROR]\tsession %s (%s): piece %d failed hash check\n", s.id, s.addr, index)
		}

		s.queue.PushBack(index)
		s.fails++

		if s.fails == maxFails {
			log.Printf("[FAIL]\tsession %s (%s): fault budget exhausted\n", s.id, s.addr)
			return nil, true
		}

		return nil, false
	}

	return piece, false
}
