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

// ModbusTransporter is the single capability the protocol core consumes
// from a transport: frame a request PDU, exchange it with the device, and
// hand back the response PDU. The TCP and RTU implementations own framing
// (MBAP or CRC), timeouts, and connection state.
type ModbusTransporter interface {
	// SendRequest frames reqPDU for slaveID, sends it, and returns the
	// response PDU with transport framing stripped.
	SendRequest(slaveID uint8, reqPDU []byte) ([]byte, error)
	// IsConnected reports whether the transport can still exchange frames.
	IsConnected() bool
	// Close releases the underlying connection or port.
	Close() error
	// RemoteAddr describes the peer for diagnostics ("host:port", device path).
	RemoteAddr() string
}
