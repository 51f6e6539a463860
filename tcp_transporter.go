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
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// TCPTransporter exchanges MBAP-framed PDUs over a net.Conn. One request is
// outstanding at a time; a mutex serializes callers and an atomic counter
// hands out transaction IDs.
type TCPTransporter struct {
	conn          net.Conn
	timeout       time.Duration
	packager      *TCPPackager
	logger        io.Writer
	transactionID uint32
	mu            sync.Mutex
	closed        bool
}

// NewTCPTransporter creates a TCPTransporter over an established connection.
// logger may be nil.
func NewTCPTransporter(conn net.Conn, timeout time.Duration, logger io.Writer) *TCPTransporter {
	return &TCPTransporter{
		conn:     conn,
		timeout:  timeout,
		packager: NewTCPPackager(),
		logger:   logger,
	}
}

func (t *TCPTransporter) log(format string, v ...interface{}) {
	if t.logger != nil {
		fmt.Fprintf(t.logger, "[DEBUG] modbus tcp: "+format+"\n", v...)
	}
}

// NextTransactionID generates the next transaction ID, wrapping at 65535.
func (t *TCPTransporter) NextTransactionID() uint16 {
	return uint16(atomic.AddUint32(&t.transactionID, 1))
}

func (t *TCPTransporter) setDeadline() error {
	if t.timeout > 0 {
		return t.conn.SetDeadline(time.Now().Add(t.timeout))
	}
	return nil
}

func (t *TCPTransporter) clearDeadline() {
	t.conn.SetDeadline(time.Time{})
}

// writeFrame writes a complete frame under an active deadline.
func (t *TCPTransporter) writeFrame(frame []byte) error {
	written := 0
	for written < len(frame) {
		n, err := t.conn.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("modbus: write failed after %d bytes: %w", written, err)
		}
		written += n
	}
	return nil
}

// readResponse reads one complete MBAP frame and returns its parts. The
// header is read in full first; its length field sizes the remaining read.
func (t *TCPTransporter) readResponse() (transactionID uint16, unitID uint8, pdu []byte, err error) {
	header := make([]byte, TCPHeaderLength)
	if _, err = io.ReadFull(t.conn, header); err != nil {
		err = fmt.Errorf("modbus: failed to read MBAP header: %w", err)
		return
	}

	length := binary.BigEndian.Uint16(header[4:6])
	if length == 0 {
		err = fmt.Errorf("modbus: invalid MBAP length field: cannot be zero")
		return
	}
	if int(length) > MaxPDULength+1 { // length counts unit ID + PDU
		err = fmt.Errorf("modbus: MBAP length field too large: %d", length)
		return
	}

	body := make([]byte, int(length)-1)
	if len(body) > 0 {
		if _, err = io.ReadFull(t.conn, body); err != nil {
			err = fmt.Errorf("modbus: failed to read PDU (%d bytes): %w", len(body), err)
			return
		}
	}

	frame := append(header, body...)
	return t.packager.Unpack(frame)
}

// SendRequest implements ModbusTransporter. It frames reqPDU, sends it, and
// reads responses until the transaction and unit IDs match, skipping up to
// two stale frames left over from timed-out requests.
func (t *TCPTransporter) SendRequest(slaveID uint8, reqPDU []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransporterClosed
	}

	txID := t.NextTransactionID()
	frame, err := t.packager.Pack(txID, slaveID, reqPDU)
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to pack request: %w", err)
	}

	if err := t.setDeadline(); err != nil {
		return nil, fmt.Errorf("modbus: failed to set deadline: %w", err)
	}
	defer t.clearDeadline()

	t.log("sending TxID=0x%04X unit=%d PDU=% X", txID, slaveID, reqPDU)
	if err := t.writeFrame(frame); err != nil {
		return nil, err
	}

	const maxSkew = 3
	for i := 0; i < maxSkew; i++ {
		respTxID, respUnitID, respPDU, err := t.readResponse()
		if err != nil {
			return nil, err
		}
		if respTxID != txID {
			t.log("transaction ID mismatch: sent=0x%04X, got=0x%04X, skipping", txID, respTxID)
			continue
		}
		if respUnitID != slaveID {
			t.log("unit ID mismatch: sent=%d, got=%d, skipping", slaveID, respUnitID)
			continue
		}
		return respPDU, nil
	}
	return nil, fmt.Errorf("modbus: no matching response after %d frames (TxID=0x%04X)", maxSkew, txID)
}

// Close closes the underlying connection and marks the transporter closed.
func (t *TCPTransporter) Close() error {
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
func (t *TCPTransporter) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.conn != nil
}

// RemoteAddr implements ModbusTransporter.
func (t *TCPTransporter) RemoteAddr() string {
	if t.conn == nil {
		return ""
	}
	return t.conn.RemoteAddr().String()
}
