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
	"math"
	"strings"
)

// normalizeDataType maps the accepted aliases of a data type tag onto its
// canonical name. Matching is case-insensitive; PLC-style names (word, real,
// lreal...) are accepted alongside the Go-style ones. An unrecognized tag is
// returned unchanged so callers can decide between strict and lenient
// handling.
func normalizeDataType(dataType string) string {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "uint16", "u16", "word":
		return "uint16"
	case "int16", "i16", "short":
		return "int16"
	case "uint32", "u32", "dword":
		return "uint32"
	case "int32", "i32", "long":
		return "int32"
	case "float32", "f32", "float", "real":
		return "float32"
	case "uint64", "u64", "qword":
		return "uint64"
	case "int64", "i64", "longlong":
		return "int64"
	case "float64", "f64", "double", "lreal":
		return "float64"
	case "bool", "boolean", "coil":
		return "bool"
	default:
		return dataType
	}
}

// RegistersForType returns the register span of a data type tag: 0 for
// booleans, 2 for the 32-bit family, 4 for the 64-bit family. Unrecognized
// tags conservatively count as a single register.
func RegistersForType(dataType string) int {
	switch normalizeDataType(dataType) {
	case "bool":
		return 0
	case "uint32", "int32", "float32":
		return 2
	case "uint64", "int64", "float64":
		return 4
	default:
		return 1
	}
}

// DecodeRegisterValue decodes raw registers into a typed value. The data
// type tag selects the variant; bitPosition is only consulted for booleans,
// where bit 0 is the least significant bit of the first register.
func DecodeRegisterValue(registers []uint16, dataType string, bitPosition uint8, order ByteOrder) (ModbusValue, error) {
	need := RegistersForType(dataType)
	if need == 0 {
		need = 1 // a boolean still lives inside one register
	}
	if len(registers) < need {
		return ModbusValue{}, fmt.Errorf("%w: %q needs %d, got %d", ErrInsufficientRegisters, dataType, need, len(registers))
	}

	switch normalizeDataType(dataType) {
	case "bool":
		if bitPosition > 15 {
			return ModbusValue{}, fmt.Errorf("%w: %d (max 15)", ErrInvalidBitPosition, bitPosition)
		}
		return BoolValue(registers[0]&(1<<bitPosition) != 0), nil
	case "uint16":
		b := RegisterToBytes2(registers[0], order)
		return Uint16Value(uint16(b[0])<<8 | uint16(b[1])), nil
	case "int16":
		b := RegisterToBytes2(registers[0], order)
		return Int16Value(int16(uint16(b[0])<<8 | uint16(b[1]))), nil
	case "uint32":
		return Uint32Value(RegistersToUint32([2]uint16{registers[0], registers[1]}, order)), nil
	case "int32":
		return Int32Value(RegistersToInt32([2]uint16{registers[0], registers[1]}, order)), nil
	case "float32":
		return Float32Value(RegistersToFloat32([2]uint16{registers[0], registers[1]}, order)), nil
	case "uint64":
		return Uint64Value(RegistersToUint64([4]uint16{registers[0], registers[1], registers[2], registers[3]}, order)), nil
	case "int64":
		return Int64Value(RegistersToInt64([4]uint16{registers[0], registers[1], registers[2], registers[3]}, order)), nil
	case "float64":
		return Float64Value(RegistersToFloat64([4]uint16{registers[0], registers[1], registers[2], registers[3]}, order)), nil
	default:
		return ModbusValue{}, fmt.Errorf("%w: %q", ErrUnsupportedType, dataType)
	}
}

// EncodeValue converts a typed value back into registers under the given
// order. The inverse of DecodeRegisterValue; never fails since the variant
// tag is already well-typed. Booleans encode as a single 0/1 register.
func EncodeValue(v ModbusValue, order ByteOrder) []uint16 {
	switch v.Type {
	case ValueBool:
		if v.Bool {
			return []uint16{1}
		}
		return []uint16{0}
	case ValueUint16:
		b := RegisterToBytes2(v.U16, order)
		return []uint16{Bytes2ToRegister(b, BigEndian16)}
	case ValueInt16:
		b := RegisterToBytes2(uint16(v.I16), order)
		return []uint16{Bytes2ToRegister(b, BigEndian16)}
	case ValueUint32:
		r := Uint32ToRegisters(v.U32, order)
		return r[:]
	case ValueInt32:
		r := Int32ToRegisters(v.I32, order)
		return r[:]
	case ValueFloat32:
		r := Float32ToRegisters(v.F32, order)
		return r[:]
	case ValueUint64:
		r := Uint64ToRegisters(v.U64, order)
		return r[:]
	case ValueInt64:
		r := Int64ToRegisters(v.I64, order)
		return r[:]
	default:
		r := Float64ToRegisters(v.F64, order)
		return r[:]
	}
}

// ClampToDataType clamps value into the representable range of the target
// type. Booleans are untouched (any nonzero becomes true at encode time)
// and unrecognized tags pass through unclamped. Both are deliberate lenient
// defaults that downstream callers rely on.
func ClampToDataType(value float64, dataType string) float64 {
	switch normalizeDataType(dataType) {
	case "uint16":
		return math.Min(math.Max(value, 0), math.MaxUint16)
	case "int16":
		return math.Min(math.Max(value, math.MinInt16), math.MaxInt16)
	case "uint32":
		return math.Min(math.Max(value, 0), math.MaxUint32)
	case "int32":
		return math.Min(math.Max(value, math.MinInt32), math.MaxInt32)
	case "float32":
		return math.Min(math.Max(value, -math.MaxFloat32), math.MaxFloat32)
	case "uint64":
		return math.Min(math.Max(value, 0), math.MaxUint64)
	case "int64":
		return math.Min(math.Max(value, math.MinInt64), math.MaxInt64)
	default:
		return value
	}
}

// EncodeFloat64As clamps value into the target type's range, casts and
// encodes it into registers. An unrecognized tag is encoded as a single
// truncated 16-bit register, matching the one-register default of
// RegistersForType rather than failing.
func EncodeFloat64As(value float64, dataType string, order ByteOrder) []uint16 {
	clamped := ClampToDataType(value, dataType)
	switch normalizeDataType(dataType) {
	case "bool":
		return EncodeValue(BoolValue(clamped != 0), order)
	case "uint16":
		return EncodeValue(Uint16Value(uint16(clamped)), order)
	case "int16":
		return EncodeValue(Int16Value(int16(clamped)), order)
	case "uint32":
		return EncodeValue(Uint32Value(uint32(clamped)), order)
	case "int32":
		return EncodeValue(Int32Value(int32(clamped)), order)
	case "float32":
		return EncodeValue(Float32Value(float32(clamped)), order)
	case "uint64":
		// the clamp ceiling rounds up to 2^64, which uint64 cannot hold
		if clamped >= math.MaxUint64 {
			return EncodeValue(Uint64Value(math.MaxUint64), order)
		}
		return EncodeValue(Uint64Value(uint64(clamped)), order)
	case "int64":
		// same at 2^63 for the signed ceiling
		if clamped >= math.MaxInt64 {
			return EncodeValue(Int64Value(math.MaxInt64), order)
		}
		return EncodeValue(Int64Value(int64(clamped)), order)
	case "float64":
		return EncodeValue(Float64Value(clamped), order)
	default:
		return EncodeValue(Uint16Value(uint16(clamped)), order)
	}
}

// ParseReadResponse extracts register values from a read response PDU.
// The parser degrades gracefully: a PDU shorter than 2 bytes yields an
// empty result, and a byte count larger than the bytes actually present is
// clamped so a truncated response still produces the available data.
// For FC 0x01/0x02 each data byte widens to one element; for FC 0x03/0x04
// every complete 2-byte pair becomes one big-endian register and a partial
// trailing byte is dropped.
func ParseReadResponse(pdu []byte, funcCode uint8) ([]uint16, error) {
	if len(pdu) < 2 {
		return nil, nil
	}
	if pdu[0] != funcCode {
		return nil, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrFunctionCodeMismatch, funcCode, pdu[0])
	}

	byteCount := int(pdu[1])
	if byteCount > len(pdu)-2 {
		byteCount = len(pdu) - 2
	}
	data := pdu[2 : 2+byteCount]

	switch funcCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		out := make([]uint16, len(data))
		for i, b := range data {
			out[i] = uint16(b)
		}
		return out, nil
	default:
		out := make([]uint16, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			out = append(out, binary.BigEndian.Uint16(data[i:i+2]))
		}
		return out, nil
	}
}

// ParseWriteResponse validates a write response PDU for FC 0x05/0x06/0x0F/
// 0x10. Exception responses surface as *ModbusError; an echo shorter than
// the fixed 5-byte layout is rejected.
func ParseWriteResponse(pdu []byte, funcCode uint8) error {
	if len(pdu) == 0 {
		return fmt.Errorf("%w: empty write response", ErrFunctionCodeMismatch)
	}
	if pdu[0]&ExceptionBit != 0 {
		code := uint8(0)
		if len(pdu) > 1 {
			code = pdu[1]
		}
		return &ModbusError{FunctionCode: pdu[0] &^ ExceptionBit, ExceptionCode: code}
	}
	if pdu[0] != funcCode {
		return fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrFunctionCodeMismatch, funcCode, pdu[0])
	}
	if len(pdu) < 5 {
		return fmt.Errorf("modbus: short write response for func 0x%02X: %d bytes", funcCode, len(pdu))
	}
	return nil
}
