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

// Modbus function codes supported by this client.
const (
	FuncCodeReadCoils              uint8 = 0x01
	FuncCodeReadDiscreteInputs     uint8 = 0x02
	FuncCodeReadHoldingRegisters   uint8 = 0x03
	FuncCodeReadInputRegisters     uint8 = 0x04
	FuncCodeWriteSingleCoil        uint8 = 0x05
	FuncCodeWriteSingleRegister    uint8 = 0x06
	FuncCodeReadExceptionStatus    uint8 = 0x07
	FuncCodeWriteMultipleCoils     uint8 = 0x0F
	FuncCodeWriteMultipleRegisters uint8 = 0x10
)

// ExceptionBit marks an exception response: the server echoes the request
// function code with the high bit set, followed by one exception code byte.
const ExceptionBit uint8 = 0x80

// Modbus exception codes.
const (
	ExceptionIllegalFunction    uint8 = 0x01
	ExceptionIllegalDataAddress uint8 = 0x02
	ExceptionIllegalDataValue   uint8 = 0x03
	ExceptionSlaveDeviceFailure uint8 = 0x04
	ExceptionAcknowledge        uint8 = 0x05
	ExceptionSlaveDeviceBusy    uint8 = 0x06
	ExceptionMemoryParityError  uint8 = 0x08
	ExceptionGatewayPathUnavail uint8 = 0x0A
	ExceptionGatewayTargetFail  uint8 = 0x0B
)

// Protocol-wide frame and request ceilings. The 253-byte PDU limit derives
// from the serial frame limit: 256 bytes minus 1 address byte and 2 CRC bytes.
const (
	MaxPDULength      = 253
	TCPHeaderLength   = 7                              // MBAP header length in bytes
	MaxTCPFrameLength = TCPHeaderLength + MaxPDULength // Maximum complete TCP frame length
	MaxRTUFrameLength = 256                            // Address + PDU + CRC

	ProtocolIdentifierTCP uint16 = 0x0000 // MBAP protocol identifier for Modbus

	MaxReadRegisters  uint16 = 125  // FC 0x03/0x04 quantity ceiling
	MaxWriteRegisters uint16 = 123  // FC 0x10 quantity ceiling
	MaxReadCoils      uint16 = 2000 // FC 0x01/0x02 quantity ceiling
	MaxWriteCoils     uint16 = 1968 // FC 0x0F quantity ceiling

	MaxSlaveID uint8 = 247 // Highest addressable unit on a Modbus segment
)

// Coil values on the wire for FC 0x05.
const (
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000
)

// getExceptionMessage returns a human-readable message for a Modbus exception code.
func getExceptionMessage(exceptionCode uint8) string {
	switch exceptionCode {
	case ExceptionIllegalFunction:
		return "Illegal function"
	case ExceptionIllegalDataAddress:
		return "Illegal data address"
	case ExceptionIllegalDataValue:
		return "Illegal data value"
	case ExceptionSlaveDeviceFailure:
		return "Slave device failure"
	case ExceptionAcknowledge:
		return "Acknowledge"
	case ExceptionSlaveDeviceBusy:
		return "Slave device busy"
	case ExceptionMemoryParityError:
		return "Memory parity error"
	case ExceptionGatewayPathUnavail:
		return "Gateway path unavailable"
	case ExceptionGatewayTargetFail:
		return "Gateway target device failed to respond"
	default:
		return "Unknown exception code"
	}
}

// FunctionCodeDescription returns a human-readable name for a function code.
// The exception bit is masked off first, so a code taken from an exception
// response names the original operation. Used for diagnostics only.
func FunctionCodeDescription(code uint8) string {
	switch code & 0x7F {
	case FuncCodeReadCoils:
		return "Read Coils"
	case FuncCodeReadDiscreteInputs:
		return "Read Discrete Inputs"
	case FuncCodeReadHoldingRegisters:
		return "Read Holding Registers"
	case FuncCodeReadInputRegisters:
		return "Read Input Registers"
	case FuncCodeWriteSingleCoil:
		return "Write Single Coil"
	case FuncCodeWriteSingleRegister:
		return "Write Single Register"
	case FuncCodeReadExceptionStatus:
		return "Read Exception Status"
	case FuncCodeWriteMultipleCoils:
		return "Write Multiple Coils"
	case FuncCodeWriteMultipleRegisters:
		return "Write Multiple Registers"
	default:
		return "Unknown Function"
	}
}
