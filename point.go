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
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// RegisterPoint describes one named point in a device's register map: where
// it lives, how to decode it, and how to scale it.
type RegisterPoint struct {
	Tag          string
	Alias        string
	SlaveID      uint16
	FunctionCode uint8
	Address      uint16
	DataType     string
	ByteOrder    ByteOrder
	BitPosition  uint8
	Weight       float64 // Scale factor applied to the decoded value, 0 means 1
}

// Span returns how many registers (or coils, for FC 0x01/0x02) the point
// occupies on the wire. Booleans and unknown types occupy one.
func (p RegisterPoint) Span() uint16 {
	n := RegistersForType(p.DataType)
	if n == 0 {
		n = 1
	}
	return uint16(n)
}

// Validate checks the point's addressing fields against protocol rules.
func (p RegisterPoint) Validate() error {
	if p.Tag == "" {
		return fmt.Errorf("modbus: point has empty tag")
	}
	if p.SlaveID > uint16(MaxSlaveID) {
		return fmt.Errorf("modbus: point %s: invalid slave ID %d", p.Tag, p.SlaveID)
	}
	switch p.FunctionCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
	default:
		return fmt.Errorf("modbus: point %s: unsupported function code %d", p.Tag, p.FunctionCode)
	}
	if p.ByteOrder != "" && !IsValidByteOrder(p.ByteOrder) {
		return fmt.Errorf("modbus: point %s: invalid byte order %q", p.Tag, p.ByteOrder)
	}
	if p.BitPosition > 15 {
		return fmt.Errorf("modbus: point %s: bit position %d out of range", p.Tag, p.BitPosition)
	}
	return nil
}

// GroupPointsByContinuity groups points by slave ID and function code, then
// splits each group at address gaps and at the protocol read ceilings, so
// every resulting group can be fetched with a single read request. Points
// are sorted; the input slice is not modified.
func GroupPointsByContinuity(points []RegisterPoint) [][]RegisterPoint {
	if len(points) == 0 {
		return [][]RegisterPoint{}
	}

	sorted := make([]RegisterPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SlaveID != sorted[j].SlaveID {
			return sorted[i].SlaveID < sorted[j].SlaveID
		}
		if sorted[i].FunctionCode != sorted[j].FunctionCode {
			return sorted[i].FunctionCode < sorted[j].FunctionCode
		}
		return sorted[i].Address < sorted[j].Address
	})

	var result [][]RegisterPoint
	current := []RegisterPoint{sorted[0]}

	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		curr := sorted[i]

		sameChannel := curr.SlaveID == prev.SlaveID && curr.FunctionCode == prev.FunctionCode
		contiguous := curr.Address == prev.Address+prev.Span()
		// Boolean points sharing a register count as contiguous too.
		sharesRegister := curr.Address == prev.Address &&
			RegistersForType(prev.DataType) == 0 && RegistersForType(curr.DataType) == 0

		if sameChannel && (contiguous || sharesRegister) && canExtendGroup(current, curr) {
			current = append(current, curr)
			continue
		}
		result = append(result, current)
		current = []RegisterPoint{curr}
	}
	return append(result, current)
}

// canExtendGroup reports whether adding a point keeps the group's total read
// quantity under the protocol ceiling for its function code.
func canExtendGroup(group []RegisterPoint, p RegisterPoint) bool {
	first := group[0]
	last := group[len(group)-1]
	end := last.Address + last.Span()
	if p.Address+p.Span() > end {
		end = p.Address + p.Span()
	}
	quantity := end - first.Address

	switch p.FunctionCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		return quantity <= MaxReadCoils
	default:
		return quantity <= MaxReadRegisters
	}
}

// groupQuantity returns the start address and total read quantity covering
// every point of a contiguous group.
func groupQuantity(group []RegisterPoint) (start, quantity uint16) {
	start = group[0].Address
	end := start
	for _, p := range group {
		if e := p.Address + p.Span(); e > end {
			end = e
		}
	}
	return start, end - start
}

// CSV column layout for point tables. A header row is required; column
// order is fixed.
var pointCSVHeader = []string{
	"tag", "alias", "slaveId", "function", "address",
	"dataType", "byteOrder", "bitPosition", "weight",
}

// ParsePointsCSV reads a point table from CSV. Every row is validated; the
// first bad row aborts the parse with its line number.
func ParsePointsCSV(r io.Reader) ([]RegisterPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to read CSV header: %w", err)
	}
	if len(header) != len(pointCSVHeader) {
		return nil, fmt.Errorf("modbus: CSV header has %d columns, expected %d", len(header), len(pointCSVHeader))
	}
	for i, name := range pointCSVHeader {
		if header[i] != name {
			return nil, fmt.Errorf("modbus: CSV column %d is %q, expected %q", i, header[i], name)
		}
	}

	var points []RegisterPoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("modbus: CSV line %d: %w", line, err)
		}

		point, err := parsePointRecord(record)
		if err != nil {
			return nil, fmt.Errorf("modbus: CSV line %d: %w", line, err)
		}
		if err := point.Validate(); err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		points = append(points, point)
	}
	return points, nil
}

func parsePointRecord(record []string) (RegisterPoint, error) {
	var p RegisterPoint
	if len(record) != len(pointCSVHeader) {
		return p, fmt.Errorf("row has %d columns, expected %d", len(record), len(pointCSVHeader))
	}

	p.Tag = record[0]
	p.Alias = record[1]

	slaveID, err := strconv.ParseUint(record[2], 10, 16)
	if err != nil {
		return p, fmt.Errorf("bad slaveId %q: %w", record[2], err)
	}
	p.SlaveID = uint16(slaveID)

	function, err := strconv.ParseUint(record[3], 10, 8)
	if err != nil {
		return p, fmt.Errorf("bad function %q: %w", record[3], err)
	}
	p.FunctionCode = uint8(function)

	address, err := strconv.ParseUint(record[4], 10, 16)
	if err != nil {
		return p, fmt.Errorf("bad address %q: %w", record[4], err)
	}
	p.Address = uint16(address)

	p.DataType = record[5]
	p.ByteOrder = ByteOrder(record[6])

	if record[7] != "" {
		bitPosition, err := strconv.ParseUint(record[7], 10, 8)
		if err != nil {
			return p, fmt.Errorf("bad bitPosition %q: %w", record[7], err)
		}
		p.BitPosition = uint8(bitPosition)
	}

	if record[8] != "" {
		weight, err := strconv.ParseFloat(record[8], 64)
		if err != nil {
			return p, fmt.Errorf("bad weight %q: %w", record[8], err)
		}
		p.Weight = weight
	}
	return p, nil
}
