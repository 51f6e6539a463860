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
)

// TCPPackager frames PDUs with the MBAP header:
// Transaction Identifier (2) + Protocol Identifier (2) + Length (2) +
// Unit Identifier (1). The length field counts the unit identifier plus
// the PDU.
type TCPPackager struct{}

// NewTCPPackager creates a new TCPPackager.
func NewTCPPackager() *TCPPackager {
	return &TCPPackager{}
}

// Pack frames a PDU into a complete Modbus TCP frame.
func (p *TCPPackager) Pack(transactionID uint16, unitID uint8, pdu []byte) ([]byte, error) {
	if len(pdu) == 0 {
		return nil, fmt.Errorf("modbus: PDU cannot be empty")
	}
	if len(pdu) > MaxPDULength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPduTooLarge, len(pdu))
	}

	frame := make([]byte, TCPHeaderLength+len(pdu))
	binary.BigEndian.PutUint16(frame[0:2], transactionID)
	binary.BigEndian.PutUint16(frame[2:4], ProtocolIdentifierTCP)
	binary.BigEndian.PutUint16(frame[4:6], uint16(len(pdu)+1))
	frame[6] = unitID
	copy(frame[TCPHeaderLength:], pdu)
	return frame, nil
}

// Unpack splits a Modbus TCP frame into transaction ID, unit ID and PDU.
// The length field must agree with the actual frame size.
func (p *TCPPackager) Unpack(frame []byte) (transactionID uint16, unitID uint8, pdu []byte, err error) {
	if len(frame) < TCPHeaderLength {
		err = fmt.Errorf("modbus: TCP frame too short: %d bytes (minimum %d)", len(frame), TCPHeaderLength)
		return
	}
	if len(frame) > MaxTCPFrameLength {
		err = fmt.Errorf("modbus: TCP frame too long: %d bytes (maximum %d)", len(frame), MaxTCPFrameLength)
		return
	}

	transactionID = binary.BigEndian.Uint16(frame[0:2])
	protocolID := binary.BigEndian.Uint16(frame[2:4])
	length := binary.BigEndian.Uint16(frame[4:6])
	unitID = frame[6]

	if protocolID != ProtocolIdentifierTCP {
		err = fmt.Errorf("modbus: invalid protocol identifier: 0x%04X", protocolID)
		return
	}
	if length == 0 {
		err = fmt.Errorf("modbus: invalid MBAP length field: cannot be zero")
		return
	}

	pdu = frame[TCPHeaderLength:]
	if int(length) != len(pdu)+1 {
		err = fmt.Errorf("modbus: MBAP length mismatch: header says %d, frame carries %d", length, len(pdu)+1)
		pdu = nil
		return
	}
	return
}

// ValidateFrame checks the MBAP header consistency of a complete frame
// without unpacking it.
func (p *TCPPackager) ValidateFrame(frame []byte) error {
	if len(frame) < TCPHeaderLength {
		return fmt.Errorf("modbus: TCP frame too short: %d bytes", len(frame))
	}
	if len(frame) > MaxTCPFrameLength {
		return fmt.Errorf("modbus: TCP frame too long: %d bytes", len(frame))
	}
	if protocolID := binary.BigEndian.Uint16(frame[2:4]); protocolID != ProtocolIdentifierTCP {
		return fmt.Errorf("modbus: invalid protocol identifier: 0x%04X", protocolID)
	}
	length := binary.BigEndian.Uint16(frame[4:6])
	if length == 0 {
		return fmt.Errorf("modbus: invalid MBAP length field: cannot be zero")
	}
	if expected := int(length) + 6; len(frame) != expected {
		return fmt.Errorf("modbus: frame length mismatch: expected %d, got %d", expected, len(frame))
	}
	return nil
}
