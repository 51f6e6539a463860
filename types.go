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
	"io"
)

// ModbusApi defines the interface for Modbus client operations.
type ModbusApi interface {
	// Handler API
	GetLastModbusError() *ModbusError // Last device exception seen by this handler
	GetMode() string                  // Transport mode: "TCP", "RTU", "RTU_OVER_TCP"
	SetLogger(io.Writer)              // SetLogger sets the logger for the client
	IsConnected() bool                // IsConnected reports transport state
	Close() error                     // Close shuts the underlying transport
	// Standard operations
	ReadCoils(slaveID uint16, startAddress, quantity uint16) ([]bool, error)              // FC 0x01
	ReadDiscreteInputs(slaveID uint16, startAddress, quantity uint16) ([]bool, error)     // FC 0x02
	ReadHoldingRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error) // FC 0x03
	ReadInputRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error)   // FC 0x04
	WriteSingleCoil(slaveID uint16, address uint16, value bool) error                     // FC 0x05
	WriteSingleRegister(slaveID uint16, address, value uint16) error                      // FC 0x06
	WriteMultipleCoils(slaveID uint16, startAddress uint16, values []bool) error          // FC 0x0F
	WriteMultipleRegisters(slaveID uint16, startAddress uint16, values []uint16) error    // FC 0x10
	// Extended operations
	ExchangePdu(slaveID uint16, reqPDU []byte) ([]byte, error) // Raw PDU round trip, no response validation
}
