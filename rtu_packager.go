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

	"github.com/sigurn/crc16"
)

var rtuCRCTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC16 calculates the Modbus CRC16 checksum of data.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, rtuCRCTable)
}

// RTUPackager frames PDUs for the serial line:
// Slave ID (1) + PDU + CRC16 (2, little-endian).
type RTUPackager struct{}

// NewRTUPackager creates a new RTU packager.
func NewRTUPackager() *RTUPackager {
	return &RTUPackager{}
}

// Pack creates an RTU frame with slave ID, PDU, and CRC.
func (p *RTUPackager) Pack(slaveID uint8, pdu []byte) ([]byte, error) {
	if slaveID == 0 || slaveID > MaxSlaveID {
		return nil, fmt.Errorf("modbus: invalid slave ID: %d (must be 1-%d)", slaveID, MaxSlaveID)
	}
	if len(pdu) == 0 {
		return nil, fmt.Errorf("modbus: PDU cannot be empty")
	}
	if len(pdu) > MaxPDULength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPduTooLarge, len(pdu))
	}

	frame := make([]byte, 1+len(pdu)+2)
	frame[0] = slaveID
	copy(frame[1:], pdu)

	// CRC is transmitted low byte first
	crc := CRC16(frame[:len(frame)-2])
	frame[len(frame)-2] = byte(crc)
	frame[len(frame)-1] = byte(crc >> 8)
	return frame, nil
}

// Unpack extracts slave ID and PDU from an RTU frame, verifying the CRC.
func (p *RTUPackager) Unpack(frame []byte) (uint8, []byte, error) {
	if len(frame) < 4 {
		return 0, nil, fmt.Errorf("modbus: RTU frame too short: %d bytes (minimum 4)", len(frame))
	}
	if !p.VerifyCRC(frame) {
		return 0, nil, fmt.Errorf("modbus: RTU CRC verification failed")
	}

	pdu := make([]byte, len(frame)-3)
	copy(pdu, frame[1:len(frame)-2])
	return frame[0], pdu, nil
}

// VerifyCRC verifies the trailing CRC of an RTU frame.
func (p *RTUPackager) VerifyCRC(frame []byte) bool {
	if len(frame) < 4 {
		return false
	}
	dataLen := len(frame) - 2
	crc := CRC16(frame[:dataLen])
	received := uint16(frame[dataLen]) | uint16(frame[dataLen+1])<<8
	return crc == received
}

// ValidateFrame performs structural validation of an RTU frame.
func (p *RTUPackager) ValidateFrame(frame []byte) error {
	if len(frame) < 4 {
		return fmt.Errorf("modbus: RTU frame too short: %d bytes (minimum 4)", len(frame))
	}
	if len(frame) > MaxRTUFrameLength {
		return fmt.Errorf("modbus: RTU frame too long: %d bytes (maximum %d)", len(frame), MaxRTUFrameLength)
	}
	if frame[0] > MaxSlaveID {
		return fmt.Errorf("modbus: invalid slave ID: %d (must be 1-%d)", frame[0], MaxSlaveID)
	}
	if frame[1] == 0 {
		return fmt.Errorf("modbus: invalid function code: 0")
	}
	if !p.VerifyCRC(frame) {
		dataLen := len(frame) - 2
		calculated := CRC16(frame[:dataLen])
		received := uint16(frame[dataLen]) | uint16(frame[dataLen+1])<<8
		return fmt.Errorf("modbus: CRC mismatch: calculated=0x%04X, received=0x%04X", calculated, received)
	}
	return nil
}

// DumpFrame returns an annotated hex dump of an RTU frame for diagnostics.
func (p *RTUPackager) DumpFrame(frame []byte) string {
	if len(frame) == 0 {
		return "Empty frame"
	}
	out := fmt.Sprintf("Frame Length: %d bytes\nHex: % X\n", len(frame), frame)
	out += fmt.Sprintf("Slave ID: %d (0x%02X)\n", frame[0], frame[0])
	if len(frame) >= 2 {
		out += fmt.Sprintf("Function Code: %d (0x%02X)", frame[1], frame[1])
		if frame[1]&ExceptionBit != 0 {
			out += " [Exception Response]"
		}
		out += "\n"
	}
	if len(frame) >= 4 {
		dataLen := len(frame) - 2
		calculated := CRC16(frame[:dataLen])
		received := uint16(frame[dataLen]) | uint16(frame[dataLen+1])<<8
		out += fmt.Sprintf("PDU: % X\n", frame[1:dataLen])
		out += fmt.Sprintf("CRC Calculated: 0x%04X\nCRC Received: 0x%04X\nCRC Valid: %t\n",
			calculated, received, calculated == received)
	}
	return out
}
