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
	"errors"
	"fmt"
)

// Sentinel errors for caller contract and protocol violations. Callers can
// match these with errors.Is after unwrapping the contextual message.
var (
	ErrBufferFull            = errors.New("modbus: pdu buffer full")
	ErrPduTooLarge           = errors.New("modbus: pdu exceeds maximum length")
	ErrInvalidFunction       = errors.New("modbus: invalid function code")
	ErrInvalidQuantity       = errors.New("modbus: invalid quantity")
	ErrFunctionCodeMismatch  = errors.New("modbus: function code mismatch")
	ErrInsufficientRegisters = errors.New("modbus: insufficient registers for data type")
	ErrInvalidBitPosition    = errors.New("modbus: bit position out of range")
	ErrUnsupportedType       = errors.New("modbus: unsupported data type")
	ErrTransporterClosed     = errors.New("modbus: transporter is closed")
)

// ModbusError represents an exception response returned by a device.
// FunctionCode holds the original function code with the exception bit
// already masked off.
type ModbusError struct {
	FunctionCode  uint8
	ExceptionCode uint8
}

func (e *ModbusError) Error() string {
	return fmt.Sprintf("modbus: exception 0x%02X (%s) on function 0x%02X (%s)",
		e.ExceptionCode, getExceptionMessage(e.ExceptionCode),
		e.FunctionCode, FunctionCodeDescription(e.FunctionCode))
}
