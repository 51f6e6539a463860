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
)

// Pdu is a Modbus protocol data unit: the function-code-prefixed payload,
// independent of transport framing. The backing storage is a fixed array
// sized to the protocol maximum so a PDU can never silently grow past the
// wire limit and appends never allocate.
type Pdu struct {
	data   [MaxPDULength]byte
	length int
}

// NewPdu returns an empty PDU.
func NewPdu() Pdu {
	return Pdu{}
}

// PduFromBytes constructs a PDU holding exactly the given bytes.
func PduFromBytes(b []byte) (Pdu, error) {
	var p Pdu
	if len(b) > MaxPDULength {
		return p, fmt.Errorf("%w: %d bytes (max %d)", ErrPduTooLarge, len(b), MaxPDULength)
	}
	copy(p.data[:], b)
	p.length = len(b)
	return p, nil
}

// Len returns the number of valid bytes in the PDU.
func (p *Pdu) Len() int {
	return p.length
}

// Bytes returns the valid prefix of the PDU. The returned slice aliases the
// PDU's storage and stays valid only while the PDU is not mutated.
func (p *Pdu) Bytes() []byte {
	return p.data[:p.length]
}

// Push appends one byte. Fails without mutating the length when full.
func (p *Pdu) Push(b byte) error {
	if p.length >= MaxPDULength {
		return fmt.Errorf("%w: cannot push byte", ErrBufferFull)
	}
	p.data[p.length] = b
	p.length++
	return nil
}

// PushUint16 appends a value big-endian. Both bytes are reserved up front so
// a failure leaves the PDU untouched.
func (p *Pdu) PushUint16(v uint16) error {
	if p.length+2 > MaxPDULength {
		return fmt.Errorf("%w: cannot push uint16", ErrBufferFull)
	}
	p.data[p.length] = byte(v >> 8)
	p.data[p.length+1] = byte(v)
	p.length += 2
	return nil
}

// Extend appends all given bytes, or none if they would not fit.
func (p *Pdu) Extend(b []byte) error {
	if p.length+len(b) > MaxPDULength {
		return fmt.Errorf("%w: %d + %d bytes exceeds %d", ErrBufferFull, p.length, len(b), MaxPDULength)
	}
	copy(p.data[p.length:], b)
	p.length += len(b)
	return nil
}

// FunctionCode returns the first byte. ok is false for an empty PDU.
func (p *Pdu) FunctionCode() (code uint8, ok bool) {
	if p.length == 0 {
		return 0, false
	}
	return p.data[0], true
}

// IsException reports whether the function code carries the exception bit.
func (p *Pdu) IsException() bool {
	return p.length > 0 && p.data[0]&ExceptionBit != 0
}

// ExceptionCode returns the exception code byte. ok is true only for an
// exception response that actually carries the code.
func (p *Pdu) ExceptionCode() (code uint8, ok bool) {
	if !p.IsException() || p.length < 2 {
		return 0, false
	}
	return p.data[1], true
}

// PduBuilder assembles a request PDU as a fluent sequence. The first error
// sticks and short-circuits every following step; Build reports it.
type PduBuilder struct {
	pdu Pdu
	err error
}

// NewPduBuilder returns an empty builder.
func NewPduBuilder() *PduBuilder {
	return &PduBuilder{}
}

// FunctionCode appends the function code byte.
func (b *PduBuilder) FunctionCode(code uint8) *PduBuilder {
	if b.err == nil {
		b.err = b.pdu.Push(code)
	}
	return b
}

// Address appends a big-endian register or coil address.
func (b *PduBuilder) Address(addr uint16) *PduBuilder {
	if b.err == nil {
		b.err = b.pdu.PushUint16(addr)
	}
	return b
}

// Quantity appends a big-endian quantity field.
func (b *PduBuilder) Quantity(q uint16) *PduBuilder {
	if b.err == nil {
		b.err = b.pdu.PushUint16(q)
	}
	return b
}

// Value appends a big-endian value field, as carried by the single-write
// requests (FC 0x05/0x06).
func (b *PduBuilder) Value(v uint16) *PduBuilder {
	if b.err == nil {
		b.err = b.pdu.PushUint16(v)
	}
	return b
}

// Byte appends a single raw byte, typically a byte-count field.
func (b *PduBuilder) Byte(v byte) *PduBuilder {
	if b.err == nil {
		b.err = b.pdu.Push(v)
	}
	return b
}

// Data appends raw payload bytes.
func (b *PduBuilder) Data(d []byte) *PduBuilder {
	if b.err == nil {
		b.err = b.pdu.Extend(d)
	}
	return b
}

// Registers appends each register value big-endian.
func (b *PduBuilder) Registers(regs []uint16) *PduBuilder {
	for _, r := range regs {
		if b.err != nil {
			break
		}
		b.err = b.pdu.PushUint16(r)
	}
	return b
}

// Build returns the assembled PDU or the first error encountered.
func (b *PduBuilder) Build() (Pdu, error) {
	if b.err != nil {
		return Pdu{}, b.err
	}
	return b.pdu, nil
}

// BuildReadRequest builds a read request PDU for FC 0x01-0x04:
// function code + address (2, big-endian) + quantity (2, big-endian).
// The quantity is validated against the protocol ceiling for the function
// code before any bytes are produced.
func BuildReadRequest(funcCode uint8, address, quantity uint16) (Pdu, error) {
	var limit uint16
	switch funcCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		limit = MaxReadCoils
	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		limit = MaxReadRegisters
	default:
		return Pdu{}, fmt.Errorf("%w: 0x%02X is not a read function", ErrInvalidFunction, funcCode)
	}
	if quantity == 0 || quantity > limit {
		return Pdu{}, fmt.Errorf("%w: %d for function 0x%02X (max %d)", ErrInvalidQuantity, quantity, funcCode, limit)
	}
	return NewPduBuilder().
		FunctionCode(funcCode).
		Address(address).
		Quantity(quantity).
		Build()
}

// BuildWriteSingleCoil builds an FC 0x05 request. The wire value is 0xFF00
// for ON and 0x0000 for OFF.
func BuildWriteSingleCoil(address uint16, on bool) (Pdu, error) {
	value := CoilOff
	if on {
		value = CoilOn
	}
	return NewPduBuilder().
		FunctionCode(FuncCodeWriteSingleCoil).
		Address(address).
		Value(value).
		Build()
}

// BuildWriteSingleRegister builds an FC 0x06 request.
func BuildWriteSingleRegister(address, value uint16) (Pdu, error) {
	return NewPduBuilder().
		FunctionCode(FuncCodeWriteSingleRegister).
		Address(address).
		Value(value).
		Build()
}

// BuildWriteMultipleCoils builds an FC 0x0F request. Coils are bit-packed
// LSB-first within each byte; byte count = ceil(n/8).
func BuildWriteMultipleCoils(address uint16, values []bool) (Pdu, error) {
	quantity := uint16(len(values))
	if quantity == 0 || quantity > MaxWriteCoils {
		return Pdu{}, fmt.Errorf("%w: %d coils (max %d)", ErrInvalidQuantity, len(values), MaxWriteCoils)
	}
	byteCount := (quantity + 7) / 8
	packed := make([]byte, byteCount)
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return NewPduBuilder().
		FunctionCode(FuncCodeWriteMultipleCoils).
		Address(address).
		Quantity(quantity).
		Byte(byte(byteCount)).
		Data(packed).
		Build()
}

// BuildWriteMultipleRegisters builds an FC 0x10 request. Byte count is
// 2*quantity; each register is emitted big-endian.
func BuildWriteMultipleRegisters(address uint16, values []uint16) (Pdu, error) {
	quantity := uint16(len(values))
	if quantity == 0 || quantity > MaxWriteRegisters {
		return Pdu{}, fmt.Errorf("%w: %d registers (max %d)", ErrInvalidQuantity, len(values), MaxWriteRegisters)
	}
	return NewPduBuilder().
		FunctionCode(FuncCodeWriteMultipleRegisters).
		Address(address).
		Quantity(quantity).
		Byte(byte(2 * quantity)).
		Registers(values).
		Build()
}
