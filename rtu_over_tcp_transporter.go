// Copyright (C) 2025  voltstack
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package modbus

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// RtuOverTCPTransporter speaks RTU framing (slave + PDU + CRC) over a TCP
// connection. Serial device servers and some gateways expose RTU slaves
// this way: no MBAP header, CRC still present.
type RtuOverTCPTransporter struct {
	conn     net.Conn
	timeout  time.Duration
	packager *RTUPackager
	mu       sync.Mutex
	closed   bool
}

// NewRtuOverTCPTransporter creates a transporter over an established
// connection.
func NewRtuOverTCPTransporter(conn net.Conn, timeout time.Duration) *RtuOverTCPTransporter {
	return &RtuOverTCPTransporter{
		conn:     conn,
		timeout:  timeout,
		packager: NewRTUPackager(),
	}
}

func (t *RtuOverTCPTransporter) setDeadline() error {
	if t.timeout > 0 {
		return t.conn.SetDeadline(time.Now().Add(t.timeout))
	}
	return nil
}

// readFrame reads one RTU response frame, sizing it from the function code
// the same way the serial transporter does.
func (t *RtuOverTCPTransporter) readFrame() ([]byte, error) {
	head := make([]byte, 3)
	if _, err := io.ReadFull(t.conn, head); err != nil {
		return nil, fmt.Errorf("modbus: failed to read frame header: %w", err)
	}

	rest, err := remainingFrameBytes(head[1], head[2])
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 3+rest)
	copy(frame, head)
	if rest > 0 {
		if _, err := io.ReadFull(t.conn, frame[3:]); err != nil {
			return nil, fmt.Errorf("modbus: failed to read frame body: %w", err)
		}
	}
	return frame, nil
}

// SendRequest implements ModbusTransporter.
func (t *RtuOverTCPTransporter) SendRequest(slaveID uint8, reqPDU []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransporterClosed
	}

	frame, err := t.packager.Pack(slaveID, reqPDU)
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to pack request: %w", err)
	}

	if err := t.setDeadline(); err != nil {
		return nil, fmt.Errorf("modbus: failed to set deadline: %w", err)
	}
	defer t.conn.SetDeadline(time.Time{})

	written := 0
	for written < len(frame) {
		n, err := t.conn.Write(frame[written:])
		if err != nil {
			return nil, fmt.Errorf("modbus: write failed after %d bytes: %w", written, err)
		}
		written += n
	}

	respFrame, err := t.readFrame()
	if err != nil {
		return nil, err
	}
	respSlaveID, respPDU, err := t.packager.Unpack(respFrame)
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to unpack response: %w", err)
	}
	if respSlaveID != slaveID {
		return nil, fmt.Errorf("modbus: response slave ID mismatch: expected %d, got %d", slaveID, respSlaveID)
	}
	return respPDU, nil
}

// Close closes the underlying connection.
func (t *RtuOverTCPTransporter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// IsConnected implements ModbusTransporter.
func (t *RtuOverTCPTransporter) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.conn != nil
}

// RemoteAddr implements ModbusTransporter.
func (t *RtuOverTCPTransporter) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}
