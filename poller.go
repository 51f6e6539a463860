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
	"sync"
	"sync/atomic"
	"time"
)

// PointSample is one decoded reading of a point.
type PointSample struct {
	Point RegisterPoint
	Value ModbusValue
	Err   error
}

// ScaledValue returns the sample's value as float64 with the point's weight
// applied. A zero weight means no scaling.
func (s PointSample) ScaledValue() float64 {
	v := s.Value.AsFloat64()
	if s.Point.Weight != 0 {
		return v * s.Point.Weight
	}
	return v
}

// OnSamplesFunc receives a batch of decoded samples.
type OnSamplesFunc func([]PointSample)

// OnErrorFunc receives read errors.
type OnErrorFunc func(error)

// PointScheduler groups a point table into contiguous spans and reads each
// span with a single request.
type PointScheduler struct {
	client ModbusApi
	groups [][]RegisterPoint
	mu     sync.Mutex
}

// NewPointScheduler creates a scheduler bound to a Modbus client.
func NewPointScheduler(client ModbusApi) *PointScheduler {
	return &PointScheduler{client: client}
}

// Load validates the point table, rejects duplicate tags and groups the
// points for efficient polling.
func (ps *PointScheduler) Load(points []RegisterPoint) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	tags := make(map[string]bool, len(points))
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return err
		}
		if tags[p.Tag] {
			return fmt.Errorf("modbus: duplicate tag: %s", p.Tag)
		}
		tags[p.Tag] = true
	}
	ps.groups = GroupPointsByContinuity(points)
	return nil
}

// GroupCount returns how many read requests one polling round issues.
func (ps *PointScheduler) GroupCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.groups)
}

// ReadAll reads every group sequentially and returns a sample per point.
// A failed group yields error samples for its points and polling continues
// with the next group.
func (ps *PointScheduler) ReadAll() ([]PointSample, []error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var samples []PointSample
	var errs []error
	for _, group := range ps.groups {
		groupSamples, err := readPointGroup(ps.client, group)
		samples = append(samples, groupSamples...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return samples, errs
}

// readPointGroup fetches one contiguous group with a single request and
// decodes each point at its offset.
func readPointGroup(client ModbusApi, group []RegisterPoint) ([]PointSample, error) {
	start, quantity := groupQuantity(group)
	slaveID := group[0].SlaveID
	funcCode := group[0].FunctionCode

	switch funcCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		var bits []bool
		var err error
		if funcCode == FuncCodeReadCoils {
			bits, err = client.ReadCoils(slaveID, start, quantity)
		} else {
			bits, err = client.ReadDiscreteInputs(slaveID, start, quantity)
		}
		if err != nil {
			return errorSamples(group, err), err
		}
		return decodeBitGroup(group, start, bits), nil

	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		var regs []uint16
		var err error
		if funcCode == FuncCodeReadHoldingRegisters {
			regs, err = client.ReadHoldingRegisters(slaveID, start, quantity)
		} else {
			regs, err = client.ReadInputRegisters(slaveID, start, quantity)
		}
		if err != nil {
			return errorSamples(group, err), err
		}
		return decodeRegisterGroup(group, start, regs), nil

	default:
		err := fmt.Errorf("%w: cannot poll function code %d", ErrInvalidFunction, funcCode)
		return errorSamples(group, err), err
	}
}

func errorSamples(group []RegisterPoint, err error) []PointSample {
	samples := make([]PointSample, len(group))
	for i, p := range group {
		samples[i] = PointSample{Point: p, Err: err}
	}
	return samples
}

func decodeBitGroup(group []RegisterPoint, start uint16, bits []bool) []PointSample {
	samples := make([]PointSample, len(group))
	for i, p := range group {
		offset := int(p.Address - start)
		if offset >= len(bits) {
			samples[i] = PointSample{Point: p, Err: fmt.Errorf("modbus: point %s: response too short", p.Tag)}
			continue
		}
		samples[i] = PointSample{Point: p, Value: BoolValue(bits[offset])}
	}
	return samples
}

func decodeRegisterGroup(group []RegisterPoint, start uint16, regs []uint16) []PointSample {
	samples := make([]PointSample, len(group))
	for i, p := range group {
		offset := int(p.Address - start)
		end := offset + int(p.Span())
		if end > len(regs) {
			samples[i] = PointSample{Point: p, Err: fmt.Errorf("modbus: point %s: response too short", p.Tag)}
			continue
		}
		value, err := DecodeRegisterValue(regs[offset:end], p.DataType, p.BitPosition, p.ByteOrder)
		samples[i] = PointSample{Point: p, Value: value, Err: err}
	}
	return samples
}

// PointStream dispatches sample batches to a callback on its own goroutine,
// decoupling slow consumers from the polling loop.
type PointStream struct {
	dataCh    chan []PointSample
	stopCh    chan struct{}
	onSamples atomic.Value
	onError   atomic.Value
}

// NewPointStream creates a stream with the given channel buffer size.
func NewPointStream(bufferSize int) *PointStream {
	return &PointStream{
		dataCh: make(chan []PointSample, bufferSize),
		stopCh: make(chan struct{}),
	}
}

// SetOnSamples sets the callback for sample batches.
func (s *PointStream) SetOnSamples(fn OnSamplesFunc) {
	s.onSamples.Store(fn)
}

// SetOnError sets the callback for read errors.
func (s *PointStream) SetOnError(fn OnErrorFunc) {
	s.onError.Store(fn)
}

// Start launches the dispatch goroutine.
func (s *PointStream) Start() {
	go func() {
		for {
			select {
			case <-s.stopCh:
				return
			case data, ok := <-s.dataCh:
				if !ok {
					return
				}
				if cb := s.onSamples.Load(); cb != nil {
					cb.(OnSamplesFunc)(data)
				}
			}
		}
	}()
}

// Push sends a sample batch to the stream unless it has been stopped.
func (s *PointStream) Push(data []PointSample) {
	select {
	case s.dataCh <- data:
	case <-s.stopCh:
	}
}

// PushError forwards a read error to the error callback, if set.
func (s *PointStream) PushError(err error) {
	if cb := s.onError.Load(); cb != nil {
		cb.(OnErrorFunc)(err)
	}
}

// Stop signals the stream to stop dispatching.
func (s *PointStream) Stop() {
	close(s.stopCh)
}

// PointManager ties a scheduler to a stream: one device's point table, its
// client, and the consumer of its samples.
type PointManager struct {
	Scheduler *PointScheduler
	Stream    *PointStream
}

// NewPointManager creates a manager for a Modbus client.
func NewPointManager(client ModbusApi, bufferSize int) *PointManager {
	return &PointManager{
		Scheduler: NewPointScheduler(client),
		Stream:    NewPointStream(bufferSize),
	}
}

// LoadPoints loads and groups the point table.
func (m *PointManager) LoadPoints(points []RegisterPoint) error {
	return m.Scheduler.Load(points)
}

// ReadAndStream runs one polling round and pushes the samples downstream.
func (m *PointManager) ReadAndStream() []error {
	samples, errs := m.Scheduler.ReadAll()
	if len(samples) > 0 {
		m.Stream.Push(samples)
	}
	for _, err := range errs {
		m.Stream.PushError(err)
	}
	return errs
}

// SetOnSamples sets the sample callback on the stream.
func (m *PointManager) SetOnSamples(fn OnSamplesFunc) {
	m.Stream.SetOnSamples(fn)
}

// SetOnError sets the error callback on the stream.
func (m *PointManager) SetOnError(fn OnErrorFunc) {
	m.Stream.SetOnError(fn)
}

// Start launches the stream goroutine.
func (m *PointManager) Start() {
	m.Stream.Start()
}

// Stop stops the stream.
func (m *PointManager) Stop() {
	m.Stream.Stop()
}

// DevicePoller drives one or more point managers at a fixed interval.
type DevicePoller struct {
	managers []*PointManager
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewDevicePoller creates a poller with the given polling interval.
func NewDevicePoller(interval time.Duration) *DevicePoller {
	return &DevicePoller{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// AddManager registers a manager with the poller.
func (dp *DevicePoller) AddManager(mgr *PointManager) {
	dp.managers = append(dp.managers, mgr)
}

// Start begins polling. Each tick reads all managers concurrently; within a
// manager, groups are read sequentially so the underlying transport sees one
// request at a time.
func (dp *DevicePoller) Start() {
	for _, mgr := range dp.managers {
		mgr.Start()
	}
	dp.wg.Add(1)
	go dp.poll()
}

func (dp *DevicePoller) poll() {
	defer dp.wg.Done()
	ticker := time.NewTicker(dp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-dp.stopCh:
			return
		case <-ticker.C:
			dp.pollManagers()
		}
	}
}

func (dp *DevicePoller) pollManagers() {
	var wg sync.WaitGroup
	for _, mgr := range dp.managers {
		wg.Add(1)
		go func(m *PointManager) {
			defer wg.Done()
			m.ReadAndStream()
		}(mgr)
	}
	wg.Wait()
}

// Stop halts polling and the managers' streams.
func (dp *DevicePoller) Stop() {
	close(dp.stopCh)
	dp.wg.Wait()
	for _, mgr := range dp.managers {
		mgr.Stop()
	}
}
