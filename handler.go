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
	"io"
	"net"
	"time"
)

// ModbusHandler implements the ModbusApi interface over a ModbusTransporter.
// Requests are built through the PDU builders, so every protocol ceiling is
// enforced before a byte reaches the wire; responses go through the codec
// parsers.
type ModbusHandler struct {
	logger          io.Writer
	transporter     ModbusTransporter
	mode            string // "TCP", "RTU" or "RTU_OVER_TCP"
	lastModbusError *ModbusError
}

// NewModbusTCPHandler creates a handler speaking MBAP over an established
// TCP connection.
func NewModbusTCPHandler(conn net.Conn, timeout time.Duration) ModbusApi {
	return &ModbusHandler{
		mode:        "TCP",
		transporter: NewTCPTransporter(conn, timeout, nil),
	}
}

// NewModbusRTUHandler creates a handler speaking RTU over an open serial
// port.
func NewModbusRTUHandler(port io.ReadWriteCloser, config RTUConfig) ModbusApi {
	return &ModbusHandler{
		mode:        "RTU",
		transporter: NewRTUTransporter(port, config),
	}
}

// NewRtuOverTCPHandler creates a handler speaking RTU framing over a TCP
// connection.
func NewRtuOverTCPHandler(conn net.Conn, timeout time.Duration) ModbusApi {
	return &ModbusHandler{
		mode:        "RTU_OVER_TCP",
		transporter: NewRtuOverTCPTransporter(conn, timeout),
	}
}

// GetMode implements ModbusApi.
func (h *ModbusHandler) GetMode() string {
	return h.mode
}

// SetLogger implements ModbusApi.
func (h *ModbusHandler) SetLogger(logger io.Writer) {
	h.logger = logger
}

// GetLastModbusError returns the last cached device exception.
func (h *ModbusHandler) GetLastModbusError() *ModbusError {
	return h.lastModbusError
}

func (h *ModbusHandler) setLastModbusError(err *ModbusError) {
	h.lastModbusError = err
	if err != nil && h.logger != nil {
		fmt.Fprintf(h.logger, "[WARNING] modbus %s: device exception: %v", h.mode, err)
	}
}

// IsConnected implements ModbusApi.
func (h *ModbusHandler) IsConnected() bool {
	return h.transporter != nil && h.transporter.IsConnected()
}

// Close implements ModbusApi.
func (h *ModbusHandler) Close() error {
	if h.transporter == nil {
		return nil
	}
	return h.transporter.Close()
}

// ExchangePdu sends a raw request PDU and returns the raw response PDU with
// framing stripped. Exception responses are returned as data, not errors;
// this is the escape hatch for vendor function codes.
func (h *ModbusHandler) ExchangePdu(slaveID uint16, reqPDU []byte) ([]byte, error) {
	if slaveID > uint16(MaxSlaveID) {
		return nil, fmt.Errorf("modbus: invalid slave ID: %d (must be 0-%d)", slaveID, MaxSlaveID)
	}
	respPDU, err := h.transporter.SendRequest(uint8(slaveID), reqPDU)
	if err != nil {
		return nil, fmt.Errorf("modbus: raw exchange failed (slave %d): %w", slaveID, err)
	}
	return respPDU, nil
}

// execute sends a request PDU and validates the response envelope: device
// exceptions become *ModbusError (and are cached), and the echoed function
// code must match the request.
func (h *ModbusHandler) execute(slaveID uint16, req Pdu) ([]byte, error) {
	if slaveID > uint16(MaxSlaveID) {
		return nil, fmt.Errorf("modbus: invalid slave ID: %d (must be 0-%d)", slaveID, MaxSlaveID)
	}
	funcCode, _ := req.FunctionCode()

	if h.logger != nil {
		fmt.Fprintf(h.logger, "[DEBUG] modbus %s: request slave=%d func=0x%02X PDU=% X (peer %s)",
			h.mode, slaveID, funcCode, req.Bytes(), h.transporter.RemoteAddr())
	}

	respPDU, err := h.transporter.SendRequest(uint8(slaveID), req.Bytes())
	if err != nil {
		return nil, fmt.Errorf("modbus: send/receive failed for func 0x%02X (slave %d): %w", funcCode, slaveID, err)
	}
	if len(respPDU) == 0 {
		return nil, fmt.Errorf("modbus: empty response for func 0x%02X (slave %d)", funcCode, slaveID)
	}

	if respPDU[0]&ExceptionBit != 0 {
		exceptionCode := uint8(0)
		if len(respPDU) > 1 {
			exceptionCode = respPDU[1]
		}
		modbusErr := &ModbusError{
			FunctionCode:  respPDU[0] &^ ExceptionBit,
			ExceptionCode: exceptionCode,
		}
		h.setLastModbusError(modbusErr)
		return nil, fmt.Errorf("modbus: request failed (slave %d): %w", slaveID, modbusErr)
	}

	if respPDU[0] != funcCode {
		return nil, fmt.Errorf("%w: sent 0x%02X, got 0x%02X (slave %d)",
			ErrFunctionCodeMismatch, funcCode, respPDU[0], slaveID)
	}
	return respPDU, nil
}

// readBits performs an FC 0x01/0x02 request and unpacks the bit-packed
// payload into one bool per requested point.
func (h *ModbusHandler) readBits(funcCode uint8, slaveID uint16, startAddress, quantity uint16) ([]bool, error) {
	req, err := BuildReadRequest(funcCode, startAddress, quantity)
	if err != nil {
		return nil, err
	}
	respPDU, err := h.execute(slaveID, req)
	if err != nil {
		return nil, err
	}

	// One element per data byte; bits are LSB-first within each byte.
	packed, err := ParseReadResponse(respPDU, funcCode)
	if err != nil {
		return nil, err
	}
	bits := make([]bool, quantity)
	for i := 0; i < int(quantity); i++ {
		byteIndex := i / 8
		if byteIndex >= len(packed) {
			break // truncated response, remaining bits stay false
		}
		bits[i] = packed[byteIndex]&(1<<(i%8)) != 0
	}
	return bits, nil
}

// readRegisters performs an FC 0x03/0x04 request.
func (h *ModbusHandler) readRegisters(funcCode uint8, slaveID uint16, startAddress, quantity uint16) ([]uint16, error) {
	req, err := BuildReadRequest(funcCode, startAddress, quantity)
	if err != nil {
		return nil, err
	}
	respPDU, err := h.execute(slaveID, req)
	if err != nil {
		return nil, err
	}
	return ParseReadResponse(respPDU, funcCode)
}

// ReadCoils implements ModbusApi (FC 0x01).
func (h *ModbusHandler) ReadCoils(slaveID uint16, startAddress, quantity uint16) ([]bool, error) {
	return h.readBits(FuncCodeReadCoils, slaveID, startAddress, quantity)
}

// ReadDiscreteInputs implements ModbusApi (FC 0x02).
func (h *ModbusHandler) ReadDiscreteInputs(slaveID uint16, startAddress, quantity uint16) ([]bool, error) {
	return h.readBits(FuncCodeReadDiscreteInputs, slaveID, startAddress, quantity)
}

// ReadHoldingRegisters implements ModbusApi (FC 0x03).
func (h *ModbusHandler) ReadHoldingRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error) {
	return h.readRegisters(FuncCodeReadHoldingRegisters, slaveID, startAddress, quantity)
}

// ReadInputRegisters implements ModbusApi (FC 0x04).
func (h *ModbusHandler) ReadInputRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error) {
	return h.readRegisters(FuncCodeReadInputRegisters, slaveID, startAddress, quantity)
}

// WriteSingleCoil implements ModbusApi (FC 0x05). The response must echo
// the request.
func (h *ModbusHandler) WriteSingleCoil(slaveID uint16, address uint16, value bool) error {
	req, err := BuildWriteSingleCoil(address, value)
	if err != nil {
		return err
	}
	respPDU, err := h.execute(slaveID, req)
	if err != nil {
		return err
	}
	if err := ParseWriteResponse(respPDU, FuncCodeWriteSingleCoil); err != nil {
		return err
	}

	respAddress := binary.BigEndian.Uint16(respPDU[1:3])
	respValue := binary.BigEndian.Uint16(respPDU[3:5])
	if respAddress != address {
		return fmt.Errorf("modbus: write single coil echo address mismatch (slave %d): expected %d, got %d", slaveID, address, respAddress)
	}
	expected := CoilOff
	if value {
		expected = CoilOn
	}
	if respValue != expected {
		return fmt.Errorf("modbus: write single coil echo value mismatch (slave %d): expected 0x%04X, got 0x%04X", slaveID, expected, respValue)
	}
	return nil
}

// WriteSingleRegister implements ModbusApi (FC 0x06).
func (h *ModbusHandler) WriteSingleRegister(slaveID uint16, address, value uint16) error {
	req, err := BuildWriteSingleRegister(address, value)
	if err != nil {
		return err
	}
	respPDU, err := h.execute(slaveID, req)
	if err != nil {
		return err
	}
	if err := ParseWriteResponse(respPDU, FuncCodeWriteSingleRegister); err != nil {
		return err
	}

	respAddress := binary.BigEndian.Uint16(respPDU[1:3])
	respValue := binary.BigEndian.Uint16(respPDU[3:5])
	if respAddress != address {
		return fmt.Errorf("modbus: write single register echo address mismatch (slave %d): expected %d, got %d", slaveID, address, respAddress)
	}
	if respValue != value {
		return fmt.Errorf("modbus: write single register echo value mismatch (slave %d): expected %d, got %d", slaveID, value, respValue)
	}
	return nil
}

// WriteMultipleCoils implements ModbusApi (FC 0x0F).
func (h *ModbusHandler) WriteMultipleCoils(slaveID uint16, startAddress uint16, values []bool) error {
	req, err := BuildWriteMultipleCoils(startAddress, values)
	if err != nil {
		return err
	}
	respPDU, err := h.execute(slaveID, req)
	if err != nil {
		return err
	}
	if err := ParseWriteResponse(respPDU, FuncCodeWriteMultipleCoils); err != nil {
		return err
	}

	respAddress := binary.BigEndian.Uint16(respPDU[1:3])
	respQuantity := binary.BigEndian.Uint16(respPDU[3:5])
	if respAddress != startAddress {
		return fmt.Errorf("modbus: write multiple coils echo address mismatch (slave %d): expected %d, got %d", slaveID, startAddress, respAddress)
	}
	if respQuantity != uint16(len(values)) {
		return fmt.Errorf("modbus: write multiple coils echo quantity mismatch (slave %d): expected %d, got %d", slaveID, len(values), respQuantity)
	}
	return nil
}

// WriteMultipleRegisters implements ModbusApi (FC 0x10).
func (h *ModbusHandler) WriteMultipleRegisters(slaveID uint16, startAddress uint16, values []uint16) error {
	req, err := BuildWriteMultipleRegisters(startAddress, values)
	if err != nil {
		return err
	}
	respPDU, err := h.execute(slaveID, req)
	if err != nil {
		return err
	}
	if err := ParseWriteResponse(respPDU, FuncCodeWriteMultipleRegisters); err != nil {
		return err
	}

	respAddress := binary.BigEndian.Uint16(respPDU[1:3])
	respQuantity := binary.BigEndian.Uint16(respPDU[3:5])
	if respAddress != startAddress {
		return fmt.Errorf("modbus: write multiple registers echo address mismatch (slave %d): expected %d, got %d", slaveID, startAddress, respAddress)
	}
	if respQuantity != uint16(len(values)) {
		return fmt.Errorf("modbus: write multiple registers echo quantity mismatch (slave %d): expected %d, got %d", slaveID, len(values), respQuantity)
	}
	return nil
}
