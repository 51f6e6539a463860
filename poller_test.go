package modbus

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeClient serves reads from fixed register/coil maps and records the
// requests it saw. Writes and raw exchanges are not used by the poller.
type fakeClient struct {
	mu        sync.Mutex
	registers map[uint16]uint16 // holding and input registers share the map
	coils     map[uint16]bool
	requests  []string
	failNext  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		registers: make(map[uint16]uint16),
		coils:     make(map[uint16]bool),
	}
}

func (f *fakeClient) GetLastModbusError() *ModbusError { return nil }
func (f *fakeClient) GetMode() string                  { return "TCP" }
func (f *fakeClient) SetLogger(io.Writer)              {}
func (f *fakeClient) IsConnected() bool                { return true }
func (f *fakeClient) Close() error                     { return nil }

func (f *fakeClient) note(op string, addr, qty uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, fmt.Sprintf("%s %d:%d", op, addr, qty))
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeClient) ReadCoils(slaveID uint16, addr, qty uint16) ([]bool, error) {
	if err := f.note("RC", addr, qty); err != nil {
		return nil, err
	}
	out := make([]bool, qty)
	for i := range out {
		out[i] = f.coils[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeClient) ReadDiscreteInputs(slaveID uint16, addr, qty uint16) ([]bool, error) {
	if err := f.note("RD", addr, qty); err != nil {
		return nil, err
	}
	out := make([]bool, qty)
	for i := range out {
		out[i] = f.coils[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeClient) ReadHoldingRegisters(slaveID uint16, addr, qty uint16) ([]uint16, error) {
	if err := f.note("RH", addr, qty); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = f.registers[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeClient) ReadInputRegisters(slaveID uint16, addr, qty uint16) ([]uint16, error) {
	if err := f.note("RI", addr, qty); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = f.registers[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeClient) WriteSingleCoil(slaveID uint16, address uint16, value bool) error { return nil }
func (f *fakeClient) WriteSingleRegister(slaveID uint16, address, value uint16) error  { return nil }
func (f *fakeClient) WriteMultipleCoils(slaveID uint16, startAddress uint16, values []bool) error {
	return nil
}
func (f *fakeClient) WriteMultipleRegisters(slaveID uint16, startAddress uint16, values []uint16) error {
	return nil
}
func (f *fakeClient) ExchangePdu(slaveID uint16, reqPDU []byte) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestSchedulerReadAll(t *testing.T) {
	client := newFakeClient()
	// float32 25.0 big-endian at 100..101, uint16 at 102
	client.registers[100] = 0x41C8
	client.registers[101] = 0x0000
	client.registers[102] = 777
	client.coils[5] = true

	scheduler := NewPointScheduler(client)
	err := scheduler.Load([]RegisterPoint{
		{Tag: "temp", SlaveID: 1, FunctionCode: 3, Address: 100, DataType: "float32", ByteOrder: BigEndian, Weight: 0.1},
		{Tag: "count", SlaveID: 1, FunctionCode: 3, Address: 102, DataType: "uint16", ByteOrder: BigEndian16},
		{Tag: "alarm", SlaveID: 1, FunctionCode: 1, Address: 5, DataType: "bool"},
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if scheduler.GroupCount() != 2 {
		t.Fatalf("expected 2 groups, got %d", scheduler.GroupCount())
	}

	samples, errs := scheduler.ReadAll()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}

	byTag := make(map[string]PointSample)
	for _, s := range samples {
		byTag[s.Point.Tag] = s
	}
	if v := byTag["temp"].Value; v.Type != ValueFloat32 || v.F32 != 25.0 {
		t.Errorf("temp: expected float32 25.0, got %+v", v)
	}
	if got := byTag["temp"].ScaledValue(); got != 2.5 {
		t.Errorf("temp scaled: expected 2.5, got %v", got)
	}
	if v := byTag["count"].Value; v.U16 != 777 {
		t.Errorf("count: expected 777, got %+v", v)
	}
	if v := byTag["alarm"].Value; !v.Bool {
		t.Errorf("alarm: expected true, got %+v", v)
	}
	// contiguous registers must be fetched with one request
	assertRequests(t, []string{"RC 5:1", "RH 100:3"}, client.requests)
}

func TestSchedulerRejectsDuplicateTags(t *testing.T) {
	scheduler := NewPointScheduler(newFakeClient())
	err := scheduler.Load([]RegisterPoint{
		{Tag: "x", SlaveID: 1, FunctionCode: 3, Address: 0, DataType: "uint16"},
		{Tag: "x", SlaveID: 1, FunctionCode: 3, Address: 1, DataType: "uint16"},
	})
	if err == nil {
		t.Error("duplicate tag accepted")
	}
}

func TestSchedulerErrorKeepsPolling(t *testing.T) {
	client := newFakeClient()
	client.failNext = errors.New("timeout")
	client.registers[200] = 42

	scheduler := NewPointScheduler(client)
	err := scheduler.Load([]RegisterPoint{
		{Tag: "a", SlaveID: 1, FunctionCode: 3, Address: 0, DataType: "uint16"},
		{Tag: "b", SlaveID: 1, FunctionCode: 3, Address: 200, DataType: "uint16"},
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	samples, errs := scheduler.ReadAll()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Err == nil {
		t.Error("failed group must yield error samples")
	}
	if samples[1].Err != nil || samples[1].Value.U16 != 42 {
		t.Errorf("second group must still be read: %+v", samples[1])
	}
}

func TestPointStreamDispatch(t *testing.T) {
	stream := NewPointStream(4)
	received := make(chan []PointSample, 1)
	stream.SetOnSamples(func(s []PointSample) { received <- s })
	stream.Start()
	defer stream.Stop()

	stream.Push([]PointSample{{Point: RegisterPoint{Tag: "x"}, Value: Uint16Value(1)}})
	select {
	case batch := <-received:
		if len(batch) != 1 || batch[0].Point.Tag != "x" {
			t.Errorf("unexpected batch: %v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestDevicePoller(t *testing.T) {
	client := newFakeClient()
	client.registers[0] = 9

	mgr := NewPointManager(client, 8)
	err := mgr.LoadPoints([]RegisterPoint{
		{Tag: "v", SlaveID: 1, FunctionCode: 3, Address: 0, DataType: "uint16"},
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	received := make(chan []PointSample, 8)
	mgr.SetOnSamples(func(s []PointSample) { received <- s })

	poller := NewDevicePoller(10 * time.Millisecond)
	poller.AddManager(mgr)
	poller.Start()
	defer poller.Stop()

	select {
	case batch := <-received:
		if len(batch) != 1 || batch[0].Value.U16 != 9 {
			t.Errorf("unexpected batch: %+v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("poller never produced a sample")
	}
}
