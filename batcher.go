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
	"sort"
	"time"

	"github.com/bangzek/clock"
)

// Batching defaults: flush pending writes after 20ms or once 100 commands
// have accumulated, whichever comes first.
const (
	DefaultBatchWindow  = 20 * time.Millisecond
	DefaultMaxBatchSize = 100
)

// Clock abstracts the time source of the batcher window. The real
// implementation comes from github.com/bangzek/clock; its mock drives the
// window in tests.
type Clock interface {
	Now() time.Time
}

// BatchKey identifies the destination group of a pending write: every
// command for the same slave and operation kind lands in the same group.
type BatchKey struct {
	SlaveID      uint16
	FunctionCode uint8
}

// BatchCommand is one pending write: where it goes, what value, and how the
// value maps onto registers. DataType drives the register span used by the
// contiguity check; ByteOrder drives the encoding.
type BatchCommand struct {
	SlaveID      uint16
	FunctionCode uint8
	Address      uint16
	Value        ModbusValue
	DataType     string
	ByteOrder    ByteOrder
}

// Key returns the grouping key of the command.
func (c BatchCommand) Key() BatchKey {
	return BatchKey{SlaveID: c.SlaveID, FunctionCode: c.FunctionCode}
}

// CommandBatcher accumulates pending write commands and releases them as
// grouped batches when the time window elapses or the size threshold is
// hit. It performs no I/O itself; the caller drives Enqueue/ShouldExecute/
// TakeCommands and issues the released writes. The enqueue-then-take pair
// is not atomic, so concurrent producers must serialize access.
type CommandBatcher struct {
	clk       Clock
	pending   map[BatchKey][]BatchCommand
	total     int
	lastFlush time.Time
	window    time.Duration
	maxBatch  int
}

// NewCommandBatcher returns a batcher with the default window and size
// threshold, driven by the wall clock.
func NewCommandBatcher() *CommandBatcher {
	return NewCommandBatcherWith(DefaultBatchWindow, DefaultMaxBatchSize, clock.New())
}

// NewCommandBatcherWith returns a batcher with explicit window, size
// threshold, and clock. Tests pass a mock clock to script the window.
func NewCommandBatcherWith(window time.Duration, maxBatch int, clk Clock) *CommandBatcher {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	return &CommandBatcher{
		clk:       clk,
		pending:   make(map[BatchKey][]BatchCommand),
		lastFlush: clk.Now(),
		window:    window,
		maxBatch:  maxBatch,
	}
}

// Enqueue appends a command to its destination group. It always succeeds;
// the size threshold is a release trigger, not a hard limit.
func (b *CommandBatcher) Enqueue(cmd BatchCommand) {
	key := cmd.Key()
	b.pending[key] = append(b.pending[key], cmd)
	b.total++
}

// PendingCount returns the total number of pending commands across groups.
func (b *CommandBatcher) PendingCount() int {
	return b.total
}

// ShouldExecute reports whether the batch is due: the window has elapsed
// since the last release, or the pending count reached the threshold.
func (b *CommandBatcher) ShouldExecute() bool {
	return b.clk.Now().Sub(b.lastFlush) >= b.window || b.total >= b.maxBatch
}

// TakeCommands snapshots the grouped commands, clears all internal state and
// restarts the window. The returned map is the caller's to process; the
// batcher holds nothing afterwards.
func (b *CommandBatcher) TakeCommands() map[BatchKey][]BatchCommand {
	out := b.pending
	b.pending = make(map[BatchKey][]BatchCommand)
	b.total = 0
	b.lastFlush = b.clk.Now()
	return out
}

// Clear discards all pending commands without returning them.
func (b *CommandBatcher) Clear() {
	b.pending = make(map[BatchKey][]BatchCommand)
	b.total = 0
}

// AreStrictlyConsecutive reports whether the commands cover a contiguous
// register range with no gaps or overlaps, which makes them eligible for a
// single multi-register write. Fewer than two commands are never considered
// consecutive. The caller's slice is not reordered; ordering is resolved
// through an index sort by address, with each command advancing the
// expected address by its data type's register span. Booleans span zero
// registers, so bit writes sharing one register remain consecutive.
func AreStrictlyConsecutive(commands []BatchCommand) bool {
	if len(commands) < 2 {
		return false
	}
	idx := make([]int, len(commands))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return commands[idx[a]].Address < commands[idx[b]].Address
	})
	expected := commands[idx[0]].Address
	for _, i := range idx {
		if commands[i].Address != expected {
			return false
		}
		expected += uint16(RegistersForType(commands[i].DataType))
	}
	return true
}

// CoalesceRegisters flattens a strictly consecutive group of register
// writes into the start address and the combined register payload for one
// FC 0x10 request. ok is false when the group cannot be coalesced, in which
// case the commands must be issued individually.
func CoalesceRegisters(commands []BatchCommand) (startAddress uint16, registers []uint16, ok bool) {
	if !AreStrictlyConsecutive(commands) {
		return 0, nil, false
	}
	idx := make([]int, len(commands))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return commands[idx[a]].Address < commands[idx[b]].Address
	})
	startAddress = commands[idx[0]].Address
	for _, i := range idx {
		registers = append(registers, EncodeValue(commands[i].Value, commands[i].ByteOrder)...)
	}
	return startAddress, registers, true
}
