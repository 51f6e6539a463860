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
	"sync"
	"time"
)

// RTUConfig holds configuration parameters for the RTU transporter.
type RTUConfig struct {
	Timeout        time.Duration // Overall request/response timeout (port-level)
	InterFrameTime time.Duration // Quiet time before each transmission
	MaxFrameSize   int
}

// DefaultRTUConfig returns the default RTU configuration.
func DefaultRTUConfig() RTUConfig {
	return RTUConfig{
		Timeout:        1 * time.Second,
		InterFrameTime: 4 * time.Millisecond, // >= 3.5 chars at 9600 baud
		MaxFrameSize:   MaxRTUFrameLength,
	}
}

// RTUTransporter exchanges CRC-framed PDUs over a half-duplex serial port.
// The port's own read timeout (goserial Config.Timeout) bounds blocking
// reads; the transporter enforces frame structure. Responses are read
// field by field, using the function code to size the remainder, which
// avoids guessing frame boundaries from inter-character gaps.
type RTUTransporter struct {
	port     io.ReadWriteCloser
	packager *RTUPackager
	config   RTUConfig
	mu       sync.Mutex
	closed   bool
}

// NewRTUTransporter creates an RTUTransporter over an open serial port.
func NewRTUTransporter(port io.ReadWriteCloser, config RTUConfig) *RTUTransporter {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = MaxRTUFrameLength
	}
	return &RTUTransporter{
		port:     port,
		packager: NewRTUPackager(),
		config:   config,
	}
}

// writeFrame writes a complete frame after the mandated quiet period.
func (t *RTUTransporter) writeFrame(frame []byte) error {
	if t.config.InterFrameTime > 0 {
		time.Sleep(t.config.InterFrameTime)
	}
	written := 0
	for written < len(frame) {
		n, err := t.port.Write(frame[written:])
		if err != nil {
			return fmt.Errorf("modbus: serial write failed after %d bytes: %w", written, err)
		}
		written += n
	}
	return nil
}

// remainingFrameBytes returns how many bytes follow the first three of a
// response frame (slave ID, function code, and one more byte), based on the
// response layout of the function code. The third byte is the byte count
// for reads, the exception code for exceptions, and the address high byte
// for write echoes.
func remainingFrameBytes(funcCode, third byte) (int, error) {
	if funcCode&ExceptionBit != 0 {
		return 2, nil // CRC only: slave + fc + exception code + CRC = 5
	}
	switch funcCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		return int(third) + 2, nil // data + CRC
	case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
		return 5, nil // remaining echo (addr low + value/quantity) + CRC
	case FuncCodeReadExceptionStatus:
		return 2, nil // CRC only
	default:
		return 0, fmt.Errorf("%w: cannot size response for 0x%02X", ErrInvalidFunction, funcCode)
	}
}

// readFrame reads one complete response frame from the port.
func (t *RTUTransporter) readFrame() ([]byte, error) {
	head := make([]byte, 3)
	if _, err := io.ReadFull(t.port, head); err != nil {
		return nil, fmt.Errorf("modbus: failed to read frame header: %w", err)
	}

	rest, err := remainingFrameBytes(head[1], head[2])
	if err != nil {
		return nil, err
	}
	if 3+rest > t.config.MaxFrameSize {
		return nil, fmt.Errorf("modbus: response frame too long: %d bytes", 3+rest)
	}

	frame := make([]byte, 3+rest)
	copy(frame, head)
	if rest > 0 {
		if _, err := io.ReadFull(t.port, frame[3:]); err != nil {
			return nil, fmt.Errorf("modbus: failed to read frame body: %w", err)
		}
	}
	return frame, nil
}

// SendRequest implements ModbusTransporter.
func (t *RTUTransporter) SendRequest(slaveID uint8, reqPDU []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransporterClosed
	}

	frame, err := t.packager.Pack(slaveID, reqPDU)
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to pack request: %w", err)
	}
	if err := t.writeFrame(frame); err != nil {
		return nil, err
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

// Close closes the underlying serial port.
func (t *RTUTransporter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if t.port != nil {
		return t.port.Close()
	}
	return nil
}

// IsConnected implements ModbusTransporter.
func (t *RTUTransporter) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.port != nil
}

// RemoteAddr implements ModbusTransporter.
func (t *RTUTransporter) RemoteAddr() string {
	return "serial"
}
