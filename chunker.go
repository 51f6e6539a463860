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
	"time"
)

// Narrow read/write capabilities consumed by the chunked operations.
// ModbusApi satisfies all of them, but a caller only needs to supply the
// single method a given operation uses.
type (
	// CoilReader reads coil state (FC 0x01).
	CoilReader interface {
		ReadCoils(slaveID uint16, startAddress, quantity uint16) ([]bool, error)
	}
	// DiscreteInputReader reads discrete input state (FC 0x02).
	DiscreteInputReader interface {
		ReadDiscreteInputs(slaveID uint16, startAddress, quantity uint16) ([]bool, error)
	}
	// HoldingRegisterReader reads holding registers (FC 0x03).
	HoldingRegisterReader interface {
		ReadHoldingRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error)
	}
	// InputRegisterReader reads input registers (FC 0x04).
	InputRegisterReader interface {
		ReadInputRegisters(slaveID uint16, startAddress, quantity uint16) ([]uint16, error)
	}
	// RegisterWriter writes multiple registers (FC 0x10).
	RegisterWriter interface {
		WriteMultipleRegisters(slaveID uint16, startAddress uint16, values []uint16) error
	}
	// CoilWriter writes multiple coils (FC 0x0F).
	CoilWriter interface {
		WriteMultipleCoils(slaveID uint16, startAddress uint16, values []bool) error
	}
)

// chunkSleep paces consecutive sub-requests. Tests swap it out to observe
// the pacing without waiting.
var chunkSleep = time.Sleep

// saturatingAdd advances an address without wrapping past the top of the
// 16-bit address space.
func saturatingAdd(addr, n uint16) uint16 {
	sum := uint32(addr) + uint32(n)
	if sum > 0xFFFF {
		return 0xFFFF
	}
	return uint16(sum)
}

// forEachChunk walks a logical request of the given quantity in chunks of at
// most chunkSize, calling fn with each sub-request's address and quantity in
// ascending address order. The delay is applied between chunks only, never
// after the last one. The first error aborts the walk and is returned as is.
//
// Modbus transports are half-duplex, so chunks are issued strictly one at a
// time; there is no parallel variant.
func forEachChunk(start, quantity, chunkSize uint16, delay time.Duration, fn func(addr, qty uint16) error) error {
	if quantity == 0 {
		return nil
	}
	if chunkSize == 0 {
		return fmt.Errorf("%w: chunk size is zero", ErrInvalidQuantity)
	}
	addr := start
	remaining := quantity
	for remaining > 0 {
		qty := remaining
		if qty > chunkSize {
			qty = chunkSize
		}
		if err := fn(addr, qty); err != nil {
			return err
		}
		remaining -= qty
		addr = saturatingAdd(addr, qty)
		if remaining > 0 && delay > 0 {
			chunkSleep(delay)
		}
	}
	return nil
}

// ReadCoilsChunked reads quantity coils starting at startAddress, splitting
// the request per limits.MaxReadCoils. Results are concatenated in address
// order; any sub-request failure discards the partial result.
func ReadCoilsChunked(r CoilReader, slaveID uint16, startAddress, quantity uint16, limits DeviceLimits) ([]bool, error) {
	if quantity == 0 {
		return []bool{}, nil
	}
	out := make([]bool, 0, quantity)
	err := forEachChunk(startAddress, quantity, limits.MaxReadCoils, limits.InterRequestDelay,
		func(addr, qty uint16) error {
			part, err := r.ReadCoils(slaveID, addr, qty)
			if err != nil {
				return err
			}
			out = append(out, part...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadDiscreteInputsChunked is ReadCoilsChunked for discrete inputs.
func ReadDiscreteInputsChunked(r DiscreteInputReader, slaveID uint16, startAddress, quantity uint16, limits DeviceLimits) ([]bool, error) {
	if quantity == 0 {
		return []bool{}, nil
	}
	out := make([]bool, 0, quantity)
	err := forEachChunk(startAddress, quantity, limits.MaxReadCoils, limits.InterRequestDelay,
		func(addr, qty uint16) error {
			part, err := r.ReadDiscreteInputs(slaveID, addr, qty)
			if err != nil {
				return err
			}
			out = append(out, part...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadHoldingRegistersChunked reads quantity holding registers, splitting
// per limits.MaxReadRegisters.
func ReadHoldingRegistersChunked(r HoldingRegisterReader, slaveID uint16, startAddress, quantity uint16, limits DeviceLimits) ([]uint16, error) {
	if quantity == 0 {
		return []uint16{}, nil
	}
	out := make([]uint16, 0, quantity)
	err := forEachChunk(startAddress, quantity, limits.MaxReadRegisters, limits.InterRequestDelay,
		func(addr, qty uint16) error {
			part, err := r.ReadHoldingRegisters(slaveID, addr, qty)
			if err != nil {
				return err
			}
			out = append(out, part...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadInputRegistersChunked is ReadHoldingRegistersChunked for input
// registers.
func ReadInputRegistersChunked(r InputRegisterReader, slaveID uint16, startAddress, quantity uint16, limits DeviceLimits) ([]uint16, error) {
	if quantity == 0 {
		return []uint16{}, nil
	}
	out := make([]uint16, 0, quantity)
	err := forEachChunk(startAddress, quantity, limits.MaxReadRegisters, limits.InterRequestDelay,
		func(addr, qty uint16) error {
			part, err := r.ReadInputRegisters(slaveID, addr, qty)
			if err != nil {
				return err
			}
			out = append(out, part...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteMultipleRegistersChunked writes values starting at startAddress,
// splitting per limits.MaxWriteRegisters. Writes already issued before a
// failure are not undone; the error simply stops further chunks.
func WriteMultipleRegistersChunked(w RegisterWriter, slaveID uint16, startAddress uint16, values []uint16, limits DeviceLimits) error {
	return forEachChunk(startAddress, uint16(len(values)), limits.MaxWriteRegisters, limits.InterRequestDelay,
		func(addr, qty uint16) error {
			offset := addr - startAddress
			return w.WriteMultipleRegisters(slaveID, addr, values[offset:offset+qty])
		})
}

// WriteMultipleCoilsChunked is the coil analogue of
// WriteMultipleRegistersChunked, splitting per limits.MaxWriteCoils.
func WriteMultipleCoilsChunked(w CoilWriter, slaveID uint16, startAddress uint16, values []bool, limits DeviceLimits) error {
	return forEachChunk(startAddress, uint16(len(values)), limits.MaxWriteCoils, limits.InterRequestDelay,
		func(addr, qty uint16) error {
			offset := addr - startAddress
			return w.WriteMultipleCoils(slaveID, addr, values[offset:offset+qty])
		})
}
