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
	"math"
)

// ByteOrder selects how the bytes of a multi-register value are arranged on
// the wire. The names follow the ABCD convention used by device vendors:
// A is the most significant byte of the value, D (or H) the least.
// The order governs both the byte order inside each 16-bit register and the
// register (word) order across 32/64-bit values.
type ByteOrder string

const (
	BigEndian        ByteOrder = "ABCD" // bytes and words ascending
	LittleEndian     ByteOrder = "DCBA" // fully reversed
	BigEndianSwap    ByteOrder = "CDAB" // words reversed, bytes big-endian
	LittleEndianSwap ByteOrder = "BADC" // words ascending, bytes reversed
	BigEndian16      ByteOrder = "AB"   // single register only
	LittleEndian16   ByteOrder = "BA"   // single register only
)

// IsValidByteOrder reports whether order is one of the supported patterns.
func IsValidByteOrder(order ByteOrder) bool {
	switch order {
	case BigEndian, LittleEndian, BigEndianSwap, LittleEndianSwap,
		BigEndian16, LittleEndian16:
		return true
	}
	return false
}

// arrange4 permutes 4 bytes between value order and wire order. Every
// supported pattern is an involution, so the same permutation serves for
// encoding and decoding. Unrecognized orders fall back to big-endian.
func arrange4(b [4]byte, order ByteOrder) [4]byte {
	switch order {
	case LittleEndian:
		return [4]byte{b[3], b[2], b[1], b[0]}
	case BigEndianSwap:
		return [4]byte{b[2], b[3], b[0], b[1]}
	case LittleEndianSwap:
		return [4]byte{b[1], b[0], b[3], b[2]}
	default:
		return b
	}
}

// arrange8 is the 8-byte analogue of arrange4 (ABCDEFGH naming).
func arrange8(b [8]byte, order ByteOrder) [8]byte {
	switch order {
	case LittleEndian: // HGFEDCBA
		return [8]byte{b[7], b[6], b[5], b[4], b[3], b[2], b[1], b[0]}
	case BigEndianSwap: // GHEFCDAB
		return [8]byte{b[6], b[7], b[4], b[5], b[2], b[3], b[0], b[1]}
	case LittleEndianSwap: // BADCFEHG
		return [8]byte{b[1], b[0], b[3], b[2], b[5], b[4], b[7], b[6]}
	default:
		return b
	}
}

// RegistersToBytes4 converts two registers to four wire bytes. Each register
// contributes its big-endian byte pair; the pairs are then arranged per order.
func RegistersToBytes4(regs [2]uint16, order ByteOrder) [4]byte {
	be := [4]byte{
		byte(regs[0] >> 8), byte(regs[0]),
		byte(regs[1] >> 8), byte(regs[1]),
	}
	return arrange4(be, order)
}

// Bytes4ToRegisters reconstructs two registers from four big-endian value
// bytes under the given order. Exact inverse of RegistersToBytes4.
func Bytes4ToRegisters(b [4]byte, order ByteOrder) [2]uint16 {
	a := arrange4(b, order)
	return [2]uint16{
		uint16(a[0])<<8 | uint16(a[1]),
		uint16(a[2])<<8 | uint16(a[3]),
	}
}

// RegistersToBytes8 converts four registers to eight wire bytes.
func RegistersToBytes8(regs [4]uint16, order ByteOrder) [8]byte {
	be := [8]byte{
		byte(regs[0] >> 8), byte(regs[0]),
		byte(regs[1] >> 8), byte(regs[1]),
		byte(regs[2] >> 8), byte(regs[2]),
		byte(regs[3] >> 8), byte(regs[3]),
	}
	return arrange8(be, order)
}

// Bytes8ToRegisters reconstructs four registers from eight big-endian value
// bytes under the given order. Exact inverse of RegistersToBytes8.
func Bytes8ToRegisters(b [8]byte, order ByteOrder) [4]uint16 {
	a := arrange8(b, order)
	return [4]uint16{
		uint16(a[0])<<8 | uint16(a[1]),
		uint16(a[2])<<8 | uint16(a[3]),
		uint16(a[4])<<8 | uint16(a[5]),
		uint16(a[6])<<8 | uint16(a[7]),
	}
}

// RegisterToBytes2 converts a single register to two bytes. Only the 16-bit
// orders are honored; any other tag defaults to big-endian. This default is
// documented behavior, not an error.
func RegisterToBytes2(reg uint16, order ByteOrder) [2]byte {
	if order == LittleEndian16 {
		return [2]byte{byte(reg), byte(reg >> 8)}
	}
	return [2]byte{byte(reg >> 8), byte(reg)}
}

// Bytes2ToRegister is the inverse of RegisterToBytes2.
func Bytes2ToRegister(b [2]byte, order ByteOrder) uint16 {
	if order == LittleEndian16 {
		return uint16(b[1])<<8 | uint16(b[0])
	}
	return uint16(b[0])<<8 | uint16(b[1])
}

// RegistersToUint32 decodes two registers as an unsigned 32-bit value.
func RegistersToUint32(regs [2]uint16, order ByteOrder) uint32 {
	b := RegistersToBytes4(regs, order)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Uint32ToRegisters encodes an unsigned 32-bit value into two registers.
func Uint32ToRegisters(v uint32, order ByteOrder) [2]uint16 {
	b := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	return Bytes4ToRegisters(b, order)
}

// RegistersToInt32 decodes two registers as a signed 32-bit value.
func RegistersToInt32(regs [2]uint16, order ByteOrder) int32 {
	return int32(RegistersToUint32(regs, order))
}

// Int32ToRegisters encodes a signed 32-bit value into two registers.
func Int32ToRegisters(v int32, order ByteOrder) [2]uint16 {
	return Uint32ToRegisters(uint32(v), order)
}

// RegistersToFloat32 decodes two registers as an IEEE-754 float.
func RegistersToFloat32(regs [2]uint16, order ByteOrder) float32 {
	return math.Float32frombits(RegistersToUint32(regs, order))
}

// Float32ToRegisters encodes an IEEE-754 float into two registers.
func Float32ToRegisters(v float32, order ByteOrder) [2]uint16 {
	return Uint32ToRegisters(math.Float32bits(v), order)
}

// RegistersToUint64 decodes four registers as an unsigned 64-bit value.
func RegistersToUint64(regs [4]uint16, order ByteOrder) uint64 {
	b := RegistersToBytes8(regs, order)
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v
}

// Uint64ToRegisters encodes an unsigned 64-bit value into four registers.
func Uint64ToRegisters(v uint64, order ByteOrder) [4]uint16 {
	b := [8]byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
	return Bytes8ToRegisters(b, order)
}

// RegistersToInt64 decodes four registers as a signed 64-bit value.
func RegistersToInt64(regs [4]uint16, order ByteOrder) int64 {
	return int64(RegistersToUint64(regs, order))
}

// Int64ToRegisters encodes a signed 64-bit value into four registers.
func Int64ToRegisters(v int64, order ByteOrder) [4]uint16 {
	return Uint64ToRegisters(uint64(v), order)
}

// RegistersToFloat64 decodes four registers as an IEEE-754 double.
func RegistersToFloat64(regs [4]uint16, order ByteOrder) float64 {
	return math.Float64frombits(RegistersToUint64(regs, order))
}

// Float64ToRegisters encodes an IEEE-754 double into four registers.
func Float64ToRegisters(v float64, order ByteOrder) [4]uint16 {
	return Uint64ToRegisters(math.Float64bits(v), order)
}
