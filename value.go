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

// ValueType tags the payload variant held by a ModbusValue.
type ValueType uint8

const (
	ValueBool ValueType = iota
	ValueUint16
	ValueInt16
	ValueUint32
	ValueInt32
	ValueFloat32
	ValueUint64
	ValueInt64
	ValueFloat64
)

// ModbusValue is a tagged union over the numeric types a register block can
// decode to. Exactly one payload field is meaningful, selected by Type.
// Values are immutable once constructed.
type ModbusValue struct {
	Type ValueType
	Bool bool
	U16  uint16
	I16  int16
	U32  uint32
	I32  int32
	F32  float32
	U64  uint64
	I64  int64
	F64  float64
}

func BoolValue(v bool) ModbusValue       { return ModbusValue{Type: ValueBool, Bool: v} }
func Uint16Value(v uint16) ModbusValue   { return ModbusValue{Type: ValueUint16, U16: v} }
func Int16Value(v int16) ModbusValue     { return ModbusValue{Type: ValueInt16, I16: v} }
func Uint32Value(v uint32) ModbusValue   { return ModbusValue{Type: ValueUint32, U32: v} }
func Int32Value(v int32) ModbusValue     { return ModbusValue{Type: ValueInt32, I32: v} }
func Float32Value(v float32) ModbusValue { return ModbusValue{Type: ValueFloat32, F32: v} }
func Uint64Value(v uint64) ModbusValue   { return ModbusValue{Type: ValueUint64, U64: v} }
func Int64Value(v int64) ModbusValue     { return ModbusValue{Type: ValueInt64, I64: v} }
func Float64Value(v float64) ModbusValue { return ModbusValue{Type: ValueFloat64, F64: v} }

// RegisterCount returns the number of 16-bit registers the value spans:
// 0 for booleans (a bit inside a register), 1, 2 or 4 otherwise.
func (v ModbusValue) RegisterCount() int {
	switch v.Type {
	case ValueBool:
		return 0
	case ValueUint32, ValueInt32, ValueFloat32:
		return 2
	case ValueUint64, ValueInt64, ValueFloat64:
		return 4
	default:
		return 1
	}
}

// AsFloat64 widens the payload to float64. Lossless for every variant except
// Uint64/Int64 near their extremes, where float64's 53-bit mantissa drops
// precision. Booleans map to 1 and 0.
func (v ModbusValue) AsFloat64() float64 {
	switch v.Type {
	case ValueBool:
		if v.Bool {
			return 1
		}
		return 0
	case ValueUint16:
		return float64(v.U16)
	case ValueInt16:
		return float64(v.I16)
	case ValueUint32:
		return float64(v.U32)
	case ValueInt32:
		return float64(v.I32)
	case ValueFloat32:
		return float64(v.F32)
	case ValueUint64:
		return float64(v.U64)
	case ValueInt64:
		return float64(v.I64)
	default:
		return v.F64
	}
}

// IsZero reports whether the payload is the zero of its type.
func (v ModbusValue) IsZero() bool {
	switch v.Type {
	case ValueBool:
		return !v.Bool
	case ValueUint16:
		return v.U16 == 0
	case ValueInt16:
		return v.I16 == 0
	case ValueUint32:
		return v.U32 == 0
	case ValueInt32:
		return v.I32 == 0
	case ValueFloat32:
		return v.F32 == 0
	case ValueUint64:
		return v.U64 == 0
	case ValueInt64:
		return v.I64 == 0
	default:
		return v.F64 == 0
	}
}

// TypeName returns the canonical data type tag for the value's variant.
func (v ModbusValue) TypeName() string {
	switch v.Type {
	case ValueBool:
		return "bool"
	case ValueUint16:
		return "uint16"
	case ValueInt16:
		return "int16"
	case ValueUint32:
		return "uint32"
	case ValueInt32:
		return "int32"
	case ValueFloat32:
		return "float32"
	case ValueUint64:
		return "uint64"
	case ValueInt64:
		return "int64"
	default:
		return "float64"
	}
}
