package modbus

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// chunkRecorder records the sub-requests a chunked operation issues and
// serves canned data sized to each request.
type chunkRecorder struct {
	requests []string
	failOn   int // 1-based request index that fails, 0 disables
	count    int
}

func (r *chunkRecorder) note(addr, qty uint16) error {
	r.count++
	r.requests = append(r.requests, fmt.Sprintf("%d:%d", addr, qty))
	if r.failOn != 0 && r.count == r.failOn {
		return errors.New("device gone")
	}
	return nil
}

func (r *chunkRecorder) ReadCoils(slaveID uint16, addr, qty uint16) ([]bool, error) {
	if err := r.note(addr, qty); err != nil {
		return nil, err
	}
	return make([]bool, qty), nil
}

func (r *chunkRecorder) ReadDiscreteInputs(slaveID uint16, addr, qty uint16) ([]bool, error) {
	return r.ReadCoils(slaveID, addr, qty)
}

func (r *chunkRecorder) ReadHoldingRegisters(slaveID uint16, addr, qty uint16) ([]uint16, error) {
	if err := r.note(addr, qty); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = addr + uint16(i) // register value mirrors its address
	}
	return out, nil
}

func (r *chunkRecorder) ReadInputRegisters(slaveID uint16, addr, qty uint16) ([]uint16, error) {
	return r.ReadHoldingRegisters(slaveID, addr, qty)
}

func (r *chunkRecorder) WriteMultipleRegisters(slaveID uint16, addr uint16, values []uint16) error {
	return r.note(addr, uint16(len(values)))
}

func (r *chunkRecorder) WriteMultipleCoils(slaveID uint16, addr uint16, values []bool) error {
	return r.note(addr, uint16(len(values)))
}

func assertRequests(t *testing.T, expected []string, actual []string) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("expected %d requests %v, got %d %v", len(expected), expected, len(actual), actual)
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Errorf("request %d: expected %s, got %s", i, expected[i], actual[i])
		}
	}
}

func TestReadHoldingRegistersChunked(t *testing.T) {
	rec := &chunkRecorder{}
	limits := DefaultDeviceLimits().WithMaxReadRegisters(50)

	out, err := ReadHoldingRegistersChunked(rec, 1, 0, 120, limits)
	if err != nil {
		t.Fatalf("chunked read failed: %v", err)
	}
	assertRequests(t, []string{"0:50", "50:50", "100:20"}, rec.requests)
	if len(out) != 120 {
		t.Fatalf("expected 120 registers, got %d", len(out))
	}
	// results must be concatenated in address order
	for i, v := range out {
		if v != uint16(i) {
			t.Fatalf("register %d: expected %d, got %d", i, i, v)
		}
	}
}

func TestReadChunkedZeroQuantity(t *testing.T) {
	rec := &chunkRecorder{}
	out, err := ReadCoilsChunked(rec, 1, 10, 0, DefaultDeviceLimits())
	if err != nil {
		t.Fatalf("zero quantity read failed: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", out)
	}
	if len(rec.requests) != 0 {
		t.Errorf("zero quantity must issue no requests, got %v", rec.requests)
	}
}

func TestReadChunkedSingleRequest(t *testing.T) {
	rec := &chunkRecorder{}
	_, err := ReadInputRegistersChunked(rec, 1, 200, 125, DefaultDeviceLimits())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	assertRequests(t, []string{"200:125"}, rec.requests)
}

func TestReadChunkedAbortsOnError(t *testing.T) {
	rec := &chunkRecorder{failOn: 2}
	limits := DefaultDeviceLimits().WithMaxReadRegisters(50)

	out, err := ReadHoldingRegistersChunked(rec, 1, 0, 150, limits)
	if err == nil {
		t.Fatal("expected error from second chunk")
	}
	if out != nil {
		t.Errorf("partial result must be discarded, got %d registers", len(out))
	}
	// the third chunk must never be issued
	assertRequests(t, []string{"0:50", "50:50"}, rec.requests)
}

func TestReadChunkedInterRequestDelay(t *testing.T) {
	var delays []time.Duration
	orig := chunkSleep
	chunkSleep = func(d time.Duration) { delays = append(delays, d) }
	defer func() { chunkSleep = orig }()

	rec := &chunkRecorder{}
	limits := DefaultDeviceLimits().
		WithMaxReadRegisters(50).
		WithInterRequestDelay(3 * time.Millisecond)

	if _, err := ReadHoldingRegistersChunked(rec, 1, 0, 120, limits); err != nil {
		t.Fatalf("chunked read failed: %v", err)
	}
	assertRequests(t, []string{"0:50", "50:50", "100:20"}, rec.requests)
	// three chunks, two gaps: no sleep after the final chunk
	if len(delays) != 2 {
		t.Fatalf("expected 2 inter-chunk delays, got %v", delays)
	}
	for i, d := range delays {
		if d != 3*time.Millisecond {
			t.Errorf("delay %d: expected 3ms, got %v", i, d)
		}
	}

	// a request that fits in one chunk never sleeps
	delays = delays[:0]
	rec = &chunkRecorder{}
	if _, err := ReadHoldingRegistersChunked(rec, 1, 0, 50, limits); err != nil {
		t.Fatalf("single chunk read failed: %v", err)
	}
	if len(delays) != 0 {
		t.Errorf("single chunk must not sleep, got %v", delays)
	}
}

func TestWriteMultipleRegistersChunked(t *testing.T) {
	rec := &chunkRecorder{}
	limits := DefaultDeviceLimits().WithMaxWriteRegisters(100)

	values := make([]uint16, 250)
	if err := WriteMultipleRegistersChunked(rec, 1, 1000, values, limits); err != nil {
		t.Fatalf("chunked write failed: %v", err)
	}
	assertRequests(t, []string{"1000:100", "1100:100", "1200:50"}, rec.requests)
}

func TestWriteMultipleCoilsChunked(t *testing.T) {
	rec := &chunkRecorder{}
	limits := DefaultDeviceLimits().WithMaxWriteCoils(1000)

	if err := WriteMultipleCoilsChunked(rec, 1, 0, make([]bool, 1500), limits); err != nil {
		t.Fatalf("chunked write failed: %v", err)
	}
	assertRequests(t, []string{"0:1000", "1000:500"}, rec.requests)
}

func TestWriteChunkedZeroValues(t *testing.T) {
	rec := &chunkRecorder{}
	if err := WriteMultipleRegistersChunked(rec, 1, 0, nil, DefaultDeviceLimits()); err != nil {
		t.Fatalf("empty write failed: %v", err)
	}
	if len(rec.requests) != 0 {
		t.Errorf("empty write must issue no requests, got %v", rec.requests)
	}
}
