package smbclient

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"

	"golang.org/x/net/proxy"
)

// Transport moves whole SMB2 messages. Send may be called concurrently with
// Receive; Receive is only called from the receive loop.
type Transport interface {
	Send(pkt []byte) error
	Receive() ([]byte, error)
	Close() error
}

// direct implements Direct TCP transport (MS-SMB2 2.1): every message is
// preceded by a zero byte and a 24-bit big-endian length.
type direct struct {
	conn net.Conn

	wmu sync.Mutex
	hdr [4]byte
}

// NewDirectTransport frames messages over an established connection.
func NewDirectTransport(conn net.Conn) Transport {
	return &direct{conn: conn}
}

func (t *direct) Send(pkt []byte) error {
	if len(pkt) > maxFrameSize {
		return fmt.Errorf("message too large for direct tcp framing: %d bytes", len(pkt))
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()

	binary.BigEndian.PutUint32(t.hdr[:], uint32(len(pkt)))

	bufs := net.Buffers{t.hdr[:], pkt}
	_, err := bufs.WriteTo(t.conn)
	return err
}

func (t *direct) Receive() ([]byte, error) {
	var hdr [4]byte

	if _, err := io.ReadFull(t.conn, hdr[:]); err != nil {
		return nil, err
	}

	if hdr[0] != 0 {
		return nil, fmt.Errorf("unexpected direct tcp frame type 0x%02x", hdr[0])
	}

	size := int(binary.BigEndian.Uint32(hdr[:]) & maxFrameSize)
	if size == 0 {
		return nil, errors.New("received empty message")
	}

	pkt := make([]byte, size)
	if _, err := io.ReadFull(t.conn, pkt); err != nil {
		return nil, err
	}

	return pkt, nil
}

func (t *direct) Close() error {
	return t.conn.Close()
}

// dial opens the TCP connection described by cfg, through the SOCKS5 proxy
// when one is configured.
func dial(ctx context.Context, cfg *Config) (net.Conn, error) {
	addr := cfg.Addr()

	d := &net.Dialer{Timeout: cfg.DialTimeout}

	if cfg.Socks5 == "" {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
		}
		return conn, nil
	}

	u, err := url.Parse(cfg.Socks5)
	if err != nil {
		return nil, fmt.Errorf("invalid socks5 url: %w", err)
	}

	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: pass,
		}
	}

	pd, err := proxy.SOCKS5("tcp", u.Host, auth, d)
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}

	var conn net.Conn
	if cd, ok := pd.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = pd.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s via %s: %w", addr, u.Host, err)
	}
	return conn, nil
}
