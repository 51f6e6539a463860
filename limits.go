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
	"time"
)

// DeviceLimits holds the per-device ceilings on request sizes and the
// pacing between consecutive requests. Many field devices accept less than
// the protocol maxima, so chunked operations take these limits instead of
// the hard ceilings. The zero delay default issues chunks back to back.
//
// DeviceLimits is a plain value; the With methods return a modified copy.
type DeviceLimits struct {
	MaxReadRegisters  uint16
	MaxWriteRegisters uint16
	MaxReadCoils      uint16
	MaxWriteCoils     uint16
	InterRequestDelay time.Duration
}

// DefaultDeviceLimits mirrors the protocol specification's hard ceilings.
func DefaultDeviceLimits() DeviceLimits {
	return DeviceLimits{
		MaxReadRegisters:  MaxReadRegisters,
		MaxWriteRegisters: MaxWriteRegisters,
		MaxReadCoils:      MaxReadCoils,
		MaxWriteCoils:     MaxWriteCoils,
	}
}

// ConservativeDeviceLimits suits slow or constrained devices: small chunks
// and a 10ms pause between requests.
func ConservativeDeviceLimits() DeviceLimits {
	return DeviceLimits{
		MaxReadRegisters:  50,
		MaxWriteRegisters: 50,
		MaxReadCoils:      500,
		MaxWriteCoils:     500,
		InterRequestDelay: 10 * time.Millisecond,
	}
}

func (l DeviceLimits) WithMaxReadRegisters(n uint16) DeviceLimits {
	l.MaxReadRegisters = n
	return l
}

func (l DeviceLimits) WithMaxWriteRegisters(n uint16) DeviceLimits {
	l.MaxWriteRegisters = n
	return l
}

func (l DeviceLimits) WithMaxReadCoils(n uint16) DeviceLimits {
	l.MaxReadCoils = n
	return l
}

func (l DeviceLimits) WithMaxWriteCoils(n uint16) DeviceLimits {
	l.MaxWriteCoils = n
	return l
}

func (l DeviceLimits) WithInterRequestDelay(d time.Duration) DeviceLimits {
	l.InterRequestDelay = d
	return l
}

// ReadRequestCount returns how many read requests a register read of the
// given total needs under these limits. Zero registers need zero requests.
func (l DeviceLimits) ReadRequestCount(total uint16) int {
	if total == 0 || l.MaxReadRegisters == 0 {
		return 0
	}
	return int((uint32(total) + uint32(l.MaxReadRegisters) - 1) / uint32(l.MaxReadRegisters))
}

// WriteRequestCount is the write analogue of ReadRequestCount.
func (l DeviceLimits) WriteRequestCount(total uint16) int {
	if total == 0 || l.MaxWriteRegisters == 0 {
		return 0
	}
	return int((uint32(total) + uint32(l.MaxWriteRegisters) - 1) / uint32(l.MaxWriteRegisters))
}

// WithinReadRegisterLimit reports whether a single read of quantity
// registers fits under the device limit.
func (l DeviceLimits) WithinReadRegisterLimit(quantity uint16) bool {
	return quantity <= l.MaxReadRegisters
}

// WithinWriteRegisterLimit reports whether a single register write fits.
func (l DeviceLimits) WithinWriteRegisterLimit(quantity uint16) bool {
	return quantity <= l.MaxWriteRegisters
}

// WithinReadCoilLimit reports whether a single coil read fits.
func (l DeviceLimits) WithinReadCoilLimit(quantity uint16) bool {
	return quantity <= l.MaxReadCoils
}

// WithinWriteCoilLimit reports whether a single coil write fits.
func (l DeviceLimits) WithinWriteCoilLimit(quantity uint16) bool {
	return quantity <= l.MaxWriteCoils
}
