package torrent

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// InlineThreshold is the "near-completion" endgame heuristic: when fewer
// than this many pieces remain queued, a peer session runs inline on the
// coordinator goroutine instead of being spawned, avoiding goroutine churn
// for a tail that a handful of sessions can finish alone. This is a
// heuristic, not an invariant; changing it cannot break correctness.
const InlineThreshold = 10

// MinReannounceInterval is the floor between tracker re-announces: even if
// the tracker's reported interval is shorter, or workers drain instantly,
// the coordinator never re-announces faster than this.
const MinReannounceInterval = 30 * time.Second

// MaxConcurrentSessions bounds how many peer sessions run at once per
// announce cycle, behind a buffered-channel semaphore.
const MaxConcurrentSessions = 10

// Coordinator drives the top-level download loop: seed the queue, announce,
// spawn one session per peer (bounded by MaxConcurrentSessions), join the
// cohort, and repeat until the queue is drained.
type Coordinator struct {
	tf       *TorrentFile
	td       *TorrentData
	infoHash [20]byte
	peerID   [20]byte
	port     int

	Queue  *PieceQueue
	Status *DownloadStatus
	Sink   PieceSink
}

// NewCoordinator builds a Coordinator ready to download tf/td. It shuffles
// a fresh piece queue covering every index in [0, NumPieces).
func NewCoordinator(tf *TorrentFile, td *TorrentData, peerID [20]byte, port int, sink PieceSink) *Coordinator {
	return &Coordinator{
		tf:       tf,
		td:       td,
		infoHash: tf.Info.InfoHash,
		peerID:   peerID,
		port:     port,
		Queue:    NewPieceQueue(td.NumPieces()),
		Status:   NewDownloadStatus(uint32(td.NumPieces())),
		Sink:     sink,
	}
}

// --------------------------------------------------------------------------------------------- //

/*
Run executes the download to completion: repeatedly announce, spawn/join one
session per returned peer, and loop until the queue is drained. It returns
when every piece has been delivered, or an error if the very first announce
fails outright (a later announce failing mid-download is logged and
retried after MinReannounceInterval; every session of the previous cohort
has already finished by then).

Returns:
  - error: non-nil only if the initial tracker contact fails entirely.
*/
func (c *Coordinator) Run() error {
	firstCycle := true

	for {
		if c.Queue.Len() == 0 {
			log.Printf("[INFO]\tdownload complete: %d/%d pieces\n", c.td.NumPieces(), c.td.NumPieces())
			return nil
		}

		cycleID := newCycleID()
		cycleStart := time.Now()

		peers, interval, err := Announce(c.tf, c.td, c.infoHash, c.peerID, c.port)
		if err != nil {
			if firstCycle {
				return fmt.Errorf("initial announce failed: %w", err)
			}

			log.Printf("[FAIL]\tcycle %s: re-announce failed, retrying after floor: %v\n", cycleID, err)
			c.sleepFloor(cycleStart)
			continue
		}
		firstCycle = false

		log.Printf("[INFO]\tcycle %s: %d peers, tracker interval %ds\n", cycleID, len(peers), interval)

		c.runCohort(peers)

		if c.Queue.Len() == 0 {
			log.Printf("[INFO]\tdownload complete: %d/%d pieces\n", c.td.NumPieces(), c.td.NumPieces())
			return nil
		}

		// Honor a floor between announces instead of immediately
		// re-announcing on cohort drain.
		floor := MinReannounceInterval
		if interval > 0 && time.Duration(interval)*time.Second > floor {
			floor = time.Duration(interval) * time.Second
		}
		c.sleepUntil(cycleStart.Add(floor))
	}
}

// runCohort spawns (or runs inline) one PeerSession per peer endpoint and
// waits for the whole cohort to finish.
func (c *Coordinator) runCohort(peers []PeerEndpoint) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, MaxConcurrentSessions)

	for _, peer := range peers {
		if c.Queue.Len() == 0 {
			break
		}

		session := NewPeerSession(peer.String(), c.infoHash, c.peerID, c.td, c.Queue, c.Status, c.Sink)

		if c.Queue.Len() < InlineThreshold {
			// Endgame heuristic, not an invariant. Avoids goroutine
			// churn when only a few pieces remain.
			session.Run()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(sess *PeerSession) {
			defer func() {
				<-sem
				wg.Done()
			}()

			sess.Run()
		}(session)
	}

	wg.Wait()
}

func (c *Coordinator) sleepFloor(cycleStart time.Time) {
	c.sleepUntil(cycleStart.Add(MinReannounceInterval))
}

func (c *Coordinator) sleepUntil(t time.Time) {
	if d := time.Until(t); d > 0 {
		time.Sleep(d)
	}
}
