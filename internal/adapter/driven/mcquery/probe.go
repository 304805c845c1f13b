// Package mcquery implements the PlayerProbe port using the connectionless
// game query protocol (UDP).
package mcquery

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/opscenter/internal/domain/model"
	"github.com/ericfisherdev/opscenter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PlayerProbe = (*Prober)(nil)

// DefaultTimeout bounds the whole two-round-trip exchange.
const DefaultTimeout = 1200 * time.Millisecond

const (
	packetTypeHandshake byte = 0x09
	packetTypeStat      byte = 0x00

	// payloadOffset is where the handshake token and stat payload begin:
	// one type byte followed by the four session-id bytes.
	payloadOffset = 5

	maxPacketSize = 4096
)

var magic = []byte{0xFE, 0xFD}

// defaultSessionID is masked with 0x0F0F0F0F as the protocol requires.
var defaultSessionID = [4]byte{0x01, 0x02, 0x03, 0x04}

// ErrMalformedResponse is returned when a reply cannot be parsed.
var ErrMalformedResponse = errors.New("malformed query response")

// Prober queries one game server for live player counts.
type Prober struct {
	addr      string
	timeout   time.Duration
	sessionID [4]byte
}

// NewProber creates a Prober for host:port. A non-positive timeout selects
// DefaultTimeout.
func NewProber(host string, port int, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		timeout:   timeout,
		sessionID: defaultSessionID,
	}
}

// Probe performs the handshake and stat exchange and returns the player counts.
func (p *Prober) Probe(ctx context.Context) (model.PlayerCount, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", p.addr)
	if err != nil {
		return model.PlayerCount{}, fmt.Errorf("dial query %s: %w", p.addr, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return model.PlayerCount{}, fmt.Errorf("set query deadline: %w", err)
	}

	buf := make([]byte, maxPacketSize)

	reply, err := roundTrip(conn, handshakePacket(p.sessionID), buf)
	if err != nil {
		return model.PlayerCount{}, fmt.Errorf("query handshake: %w", err)
	}
	token, err := parseHandshake(reply)
	if err != nil {
		return model.PlayerCount{}, err
	}

	reply, err = roundTrip(conn, statPacket(p.sessionID, token), buf)
	if err != nil {
		return model.PlayerCount{}, fmt.Errorf("query stat: %w", err)
	}
	return parseStat(reply)
}

func roundTrip(conn net.Conn, packet, buf []byte) ([]byte, error) {
	if _, err := conn.Write(packet); err != nil {
		return nil, err
	}
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func maskedSession(id [4]byte) []byte {
	return []byte{id[0] & 0x0F, id[1] & 0x0F, id[2] & 0x0F, id[3] & 0x0F}
}

// handshakePacket builds FE FD 09 <session>.
func handshakePacket(session [4]byte) []byte {
	packet := append([]byte{}, magic...)
	packet = append(packet, packetTypeHandshake)
	return append(packet, maskedSession(session)...)
}

// statPacket builds FE FD 00 <session> <int32 BE token>.
func statPacket(session [4]byte, token int32) []byte {
	packet := append([]byte{}, magic...)
	packet = append(packet, packetTypeStat)
	packet = append(packet, maskedSession(session)...)
	return binary.BigEndian.AppendUint32(packet, uint32(token))
}

// parseHandshake extracts the ASCII challenge token starting at byte 5.
func parseHandshake(reply []byte) (int32, error) {
	if len(reply) <= payloadOffset {
		return 0, fmt.Errorf("%w: handshake reply too short (%d bytes)", ErrMalformedResponse, len(reply))
	}
	raw := strings.TrimSpace(strings.ReplaceAll(string(reply[payloadOffset:]), "\x00", ""))
	token, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad challenge token %q", ErrMalformedResponse, raw)
	}
	return int32(token), nil
}

// parseStat reads NUL-separated key/value pairs starting at byte 5.
func parseStat(reply []byte) (model.PlayerCount, error) {
	if len(reply) <= payloadOffset {
		return model.PlayerCount{}, fmt.Errorf("%w: stat reply too short (%d bytes)", ErrMalformedResponse, len(reply))
	}

	var parts []string
	for _, field := range bytes.Split(reply[payloadOffset:], []byte{0}) {
		if len(field) > 0 {
			parts = append(parts, string(field))
		}
	}

	kv := make(map[string]string, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		kv[parts[i]] = parts[i+1]
	}

	online, err := intField(kv, "numplayers", "numPlayers")
	if err != nil {
		return model.PlayerCount{}, err
	}
	maxPlayers, err := intField(kv, "maxplayers", "maxPlayers")
	if err != nil {
		return model.PlayerCount{}, err
	}

	return model.PlayerCount{Online: online, Max: maxPlayers, Raw: kv}, nil
}

func intField(kv map[string]string, keys ...string) (int, error) {
	for _, key := range keys {
		raw, ok := kv[key]
		if !ok {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrMalformedResponse, key, raw)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w: missing %s", ErrMalformedResponse, keys[0])
}
