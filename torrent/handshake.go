package torrent

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

const protocolName = "BitTorrent protocol"

// Handshake is the 68-byte message that opens every peer connection:
// <19><"BitTorrent protocol"><8 reserved><info_hash><peer_id>.
type Handshake struct {
	ProtocolNameLength byte
	Protocol           [19]byte
	Reserved           [8]byte
	InfoHash           [20]byte
	PeerID             [20]byte
}

const handshakeTimeout = 5 * time.Second

// --------------------------------------------------------------------------------------------- //

/*
PerformHandshake dials peer, exchanges the BitTorrent handshake, and returns
a byte-stream connection ready for message traffic. The returned conn has no
deadline set; the caller (the peer session) is responsible for setting its
own read/write timeouts for the remainder of the conversation.

Parameters:
  - addr: "ip:port" of the peer to connect to.
  - infoHash: the 20-byte info hash identifying the torrent.
  - peerID: this client's 20-byte peer id.

Returns:
  - net.Conn: the live connection, post-handshake.
  - string: the remote peer's advertised peer id.
  - error: non-nil on dial failure, protocol mismatch, or info hash mismatch.
*/
func PerformHandshake(addr string, infoHash [20]byte, peerID [20]byte) (net.Conn, string, error) {
	conn, err := net.DialTimeout("tcp", addr, handshakeTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("dialing %s: %w", addr, err)
	}

	var hs Handshake
	hs.ProtocolNameLength = byte(len(protocolName))
	copy(hs.Protocol[:], protocolName)
	hs.InfoHash = infoHash
	hs.PeerID = peerID

	conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	if err := binary.Write(conn, binary.BigEndian, &hs); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("sending handshake to %s: %w", addr, err)
	}

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var resp Handshake
	if err := binary.Read(conn, binary.BigEndian, &resp); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("reading handshake from %s: %w", addr, err)
	}

	if resp.ProtocolNameLength != 19 || string(resp.Protocol[:]) != protocolName {
		conn.Close()
		return nil, "", fmt.Errorf("invalid protocol in handshake from %s", addr)
	}

	if !bytes.Equal(resp.InfoHash[:], infoHash[:]) {
		conn.Close()
		return nil, "", fmt.Errorf("info hash mismatch in handshake from %s", addr)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	return conn, string(resp.PeerID[:]), nil
}
