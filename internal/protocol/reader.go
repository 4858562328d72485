// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package protocol implements the wire framing for the history service: a
// single packet per connection, terminated by the first '\n' byte.
package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// initialCapacity is the packet buffer's starting size, doubled whenever a
// read fills it without yielding a newline.
const initialCapacity = 1024

// PacketReader accumulates bytes from a connection until the first '\n' is
// seen, growing its buffer geometrically. One PacketReader reads exactly one
// packet; it is not reusable across packets.
type PacketReader struct {
	buf []byte
	pos int // write cursor: bytes already filled in buf[:pos]
}

// NewPacketReader creates a PacketReader with the standard initial capacity.
func NewPacketReader() *PacketReader {
	return &PacketReader{buf: make([]byte, initialCapacity)}
}

// ReadOne reads from r until the first '\n' byte (inclusive) is seen and
// returns exactly that packet. Bytes read past the newline in the same
// underlying Read are discarded: one packet per connection.
//
// A read error from r surfaces unwrapped-by-type but wrapped with context;
// callers terminate only the connection that produced it.
func (p *PacketReader) ReadOne(r io.Reader) ([]byte, error) {
	for {
		room := len(p.buf) - p.pos
		n, err := r.Read(p.buf[p.pos : p.pos+room])
		if n > 0 {
			chunk := p.buf[p.pos : p.pos+n]
			if idx := bytes.IndexByte(chunk, '\n'); idx >= 0 {
				return p.buf[:p.pos+idx+1], nil
			}
			p.pos += n

			if n == room {
				p.grow()
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading packet: %w", err)
		}
	}
}

// grow doubles the buffer's capacity, preserving bytes already read.
func (p *PacketReader) grow() {
	newBuf := make([]byte, len(p.buf)*2)
	copy(newBuf, p.buf[:p.pos])
	p.buf = newBuf
}
