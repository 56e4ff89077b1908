package torrent

import (
	"encoding/binary"
	"fmt"
	"log"
	mrand "math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jackpal/bencode-go"
)

// ListenPort is advertised to trackers; the core engine never opens an
// inbound listener. There is no seeding support.
const ListenPort = 7878

// TrackerResponse is the decoded result of an announce: a compact peer list
// and the tracker's requested re-announce interval.
type TrackerResponse struct {
	Failure  string `bencode:"failure reason"`
	Interval int    `bencode:"interval"`
	Peers    string `bencode:"peers"`
}

// PeerEndpoint is one "ip:port" entry decoded from a tracker's compact peer
// list.
type PeerEndpoint struct {
	IP   string
	Port uint16
}

func (p PeerEndpoint) String() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// --------------------------------------------------------------------------------------------- //

/*
ParseCompactPeers converts a compact peer list (multiples of 6 bytes: 4-byte
IPv4 + 2-byte big-endian port) into a slice of PeerEndpoint.

Parameters:
  - peers: Raw compact peer list bytes.

Returns:
  - []PeerEndpoint: decoded endpoints.
  - error: non-nil if the list length is not a multiple of 6.
*/
func ParseCompactPeers(peers string) ([]PeerEndpoint, error) {
	raw := []byte(peers)
	if len(raw)%6 != 0 {
		return nil, fmt.Errorf("tracker: invalid compact peers length %d (must be multiple of 6)", len(raw))
	}

	result := make([]PeerEndpoint, 0, len(raw)/6)
	for i := 0; i < len(raw); i += 6 {
		ip := fmt.Sprintf("%d.%d.%d.%d", raw[i], raw[i+1], raw[i+2], raw[i+3])
		port := binary.BigEndian.Uint16(raw[i+4 : i+6])
		result = append(result, PeerEndpoint{IP: ip, Port: port})
	}

	return result, nil
}

// --------------------------------------------------------------------------------------------- //

/*
announceHTTP sends an HTTP tracker request and decodes the bencoded
response.

Parameters:
  - announceURL: the tracker's announce URL.
  - td: torrent metadata supplying `left`.
  - infoHash: the torrent's info hash.
  - peerID: this client's peer id.
  - port: the port advertised to the tracker.

Returns:
  - *TrackerResponse: decoded response.
  - error: non-nil on network, decode, or tracker-reported failure.
*/
func announceHTTP(announceURL string, td *TorrentData, infoHash, peerID [20]byte, port int) (*TrackerResponse, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing tracker URL: %w", err)
	}

	query := fmt.Sprintf(
		"compact=1&downloaded=0&info_hash=%s&left=%d&peer_id=%s&port=%d&uploaded=0",
		percentEncodeUpper(infoHash[:]), td.TotalLength, percentEncodeUpper(peerID[:]), port,
	)
	u.RawQuery = query

	client := &http.Client{Timeout: 20 * time.Second}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building tracker request: %w", err)
	}
	req.Header.Set("User-Agent", "torrentcore/1.0")

	log.Printf("[INFO]\tannouncing to %s\n", announceURL)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contacting tracker %s: %w", announceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker %s returned status %d", announceURL, resp.StatusCode)
	}

	var tr TrackerResponse
	if err := bencode.Unmarshal(resp.Body, &tr); err != nil {
		return nil, fmt.Errorf("decoding tracker response from %s: %w", announceURL, err)
	}

	if tr.Failure != "" {
		return nil, fmt.Errorf("tracker %s reported failure: %s", announceURL, tr.Failure)
	}

	return &tr, nil
}

// --------------------------------------------------------------------------------------------- //

/*
createAnnounceRequest constructs a binary BEP-15 announce request for a UDP
tracker.
*/
func createAnnounceRequest(connectionID uint64, transactionID uint32, infoHash, peerID [20]byte, left uint64, port uint16) []byte {
	const (
		actionAnnounce = 1
		eventStarted   = 2
		numWant        = -1
	)

	req := make([]byte, 98)
	binary.BigEndian.PutUint64(req[0:8], connectionID)
	binary.BigEndian.PutUint32(req[8:12], actionAnnounce)
	binary.BigEndian.PutUint32(req[12:16], transactionID)
	copy(req[16:36], infoHash[:])
	copy(req[36:56], peerID[:])
	binary.BigEndian.PutUint64(req[56:64], 0) // downloaded
	binary.BigEndian.PutUint64(req[64:72], left)
	binary.BigEndian.PutUint64(req[72:80], 0) // uploaded
	binary.BigEndian.PutUint32(req[80:84], eventStarted)
	binary.BigEndian.PutUint32(req[88:92], mrand.Uint32()) // key
	binary.BigEndian.PutUint32(req[92:96], uint32(numWant))
	binary.BigEndian.PutUint16(req[96:98], port)

	return req
}

// --------------------------------------------------------------------------------------------- //

/*
announceUDP performs the BEP-15 connect/announce exchange against a UDP
tracker.

Parameters:
  - announceURL: the udp:// tracker URL.
  - td: torrent metadata supplying `left`.
  - infoHash: the torrent's info hash.
  - peerID: this client's peer id.
  - port: the port advertised to the tracker.

Returns:
  - *TrackerResponse: decoded response (peers + interval).
  - error: non-nil on network error, protocol mismatch, or tracker error.
*/
func announceUDP(announceURL string, td *TorrentData, infoHash, peerID [20]byte, port uint16) (*TrackerResponse, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return nil, fmt.Errorf("parsing UDP tracker URL: %w", err)
	}

	addr, err := net.ResolveUDPAddr("udp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("resolving UDP tracker address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing UDP tracker: %w", err)
	}
	defer conn.Close()

	transactionID, err := generateTransactionID()
	if err != nil {
		return nil, err
	}

	const protocolID uint64 = 0x41727101980

	connectReq := make([]byte, 16)
	binary.BigEndian.PutUint64(connectReq[0:8], protocolID)
	binary.BigEndian.PutUint32(connectReq[8:12], 0) // action: connect
	binary.BigEndian.PutUint32(connectReq[12:16], transactionID)

	for attempt := 0; attempt < 3; attempt++ {
		conn.SetDeadline(time.Now().Add(time.Duration(5+attempt*2) * time.Second))

		if _, err := conn.Write(connectReq); err != nil {
			log.Printf("[FAIL]\tudp tracker %s: connect attempt %d: %v\n", announceURL, attempt+1, err)
			continue
		}

		connResp := make([]byte, 16)
		n, err := conn.Read(connResp)
		if err != nil || n < 16 {
			log.Printf("[FAIL]\tudp tracker %s: connect response attempt %d: %v\n", announceURL, attempt+1, err)
			continue
		}

		if binary.BigEndian.Uint32(connResp[0:4]) != 0 {
			return nil, fmt.Errorf("udp tracker %s: invalid connect action", announceURL)
		}

		if binary.BigEndian.Uint32(connResp[4:8]) != transactionID {
			return nil, fmt.Errorf("udp tracker %s: transaction id mismatch", announceURL)
		}

		connectionID := binary.BigEndian.Uint64(connResp[8:16])
		left := uint64(td.TotalLength)

		announceReq := createAnnounceRequest(connectionID, transactionID, infoHash, peerID, left, port)

		conn.SetDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write(announceReq); err != nil {
			return nil, fmt.Errorf("sending udp announce to %s: %w", announceURL, err)
		}

		announceResp := make([]byte, 1024)
		n, err = conn.Read(announceResp)
		if err != nil {
			return nil, fmt.Errorf("reading udp announce response from %s: %w", announceURL, err)
		}

		if n < 20 {
			return nil, fmt.Errorf("udp tracker %s: announce response too short (%d bytes)", announceURL, n)
		}

		action := binary.BigEndian.Uint32(announceResp[0:4])
		if action == 3 {
			return nil, fmt.Errorf("udp tracker %s error: %s", announceURL, string(announceResp[8:n]))
		}

		if action != 1 {
			return nil, fmt.Errorf("udp tracker %s: invalid announce action %d", announceURL, action)
		}

		if binary.BigEndian.Uint32(announceResp[4:8]) != transactionID {
			return nil, fmt.Errorf("udp tracker %s: transaction id mismatch on announce", announceURL)
		}

		interval := int(binary.BigEndian.Uint32(announceResp[8:12]))
		peers := announceResp[20:n]

		if len(peers)%6 != 0 {
			return nil, fmt.Errorf("udp tracker %s: invalid peers length %d", announceURL, len(peers))
		}

		return &TrackerResponse{Peers: string(peers), Interval: interval}, nil
	}

	return nil, fmt.Errorf("udp tracker %s: no connect response after 3 attempts", announceURL)
}

// --------------------------------------------------------------------------------------------- //

/*
Announce contacts every HTTP and UDP tracker named in tf's announce/
announce-list, unions their peer lists, and returns the shortest reported
interval. It is fatal only if every tracker fails or none of them return
any peers.

Parameters:
  - tf: the parsed torrent file (for announce URLs).
  - td: torrent metadata.
  - infoHash: the torrent's info hash.
  - peerID: this client's peer id.
  - port: the port advertised to trackers.

Returns:
  - []PeerEndpoint: deduplicated peer endpoints across every tracker that answered.
  - int: the minimum reported interval in seconds.
  - error: non-nil if no tracker could be reached or none returned peers.
*/
func Announce(tf *TorrentFile, td *TorrentData, infoHash, peerID [20]byte, port int) ([]PeerEndpoint, int, error) {
	trackers := make(map[string]struct{})
	if tf.Announce != "" {
		trackers[tf.Announce] = struct{}{}
	}

	for _, tier := range tf.AnnounceList {
		for _, a := range tier {
			if a != "" {
				trackers[a] = struct{}{}
			}
		}
	}

	if len(trackers) == 0 {
		return nil, 0, fmt.Errorf("tracker: no announce URLs found in torrent")
	}

	seen := make(map[string]struct{})
	var peers []PeerEndpoint
	interval := 0

	for announceURL := range trackers {
		var (
			resp *TrackerResponse
			err  error
		)

		switch {
		case isHTTPTracker(announceURL):
			resp, err = announceHTTP(announceURL, td, infoHash, peerID, port)
		case isUDPTracker(announceURL):
			resp, err = announceUDP(announceURL, td, infoHash, peerID, uint16(port))
		default:
			continue
		}

		if err != nil {
			log.Printf("[FAIL]\ttracker %s: %v\n", announceURL, err)
			continue
		}

		decoded, err := ParseCompactPeers(resp.Peers)
		if err != nil {
			log.Printf("[FAIL]\ttracker %s: %v\n", announceURL, err)
			continue
		}

		for _, p := range decoded {
			key := p.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			peers = append(peers, p)
		}

		if interval == 0 || (resp.Interval > 0 && resp.Interval < interval) {
			interval = resp.Interval
		}
	}

	if len(peers) == 0 {
		return nil, 0, fmt.Errorf("tracker: no peers received from any tracker")
	}

	return peers, interval, nil
}
