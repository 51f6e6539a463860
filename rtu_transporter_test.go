package modbus

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

// scriptedPort plays back canned response frames and records everything
// written to it.
type scriptedPort struct {
	reads  bytes.Buffer
	writes bytes.Buffer
	closed bool
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if p.reads.Len() == 0 {
		return 0, io.EOF
	}
	return p.reads.Read(b)
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	return p.writes.Write(b)
}

func (p *scriptedPort) Close() error {
	p.closed = true
	return nil
}

func fastRTUConfig() RTUConfig {
	cfg := DefaultRTUConfig()
	cfg.InterFrameTime = 0
	cfg.Timeout = 100 * time.Millisecond
	return cfg
}

func TestRTUTransporterSendRequest(t *testing.T) {
	port := &scriptedPort{}
	// response: slave 3, FC1, 1 data byte, bit 0 set
	port.reads.Write([]byte{0x03, 0x01, 0x01, 0x01, 0x91, 0xF0})

	tr := NewRTUTransporter(port, fastRTUConfig())
	pdu, err := tr.SendRequest(3, []byte{0x01, 0x00, 0x02, 0x00, 0x01})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x01, 0x01}, pdu)
	// the request frame on the wire carries slave ID and CRC
	assertBytesEqual(t, []byte{0x03, 0x01, 0x00, 0x02, 0x00, 0x01, 0x5D, 0xE8}, port.writes.Bytes())
}

func TestRTUTransporterExceptionFrame(t *testing.T) {
	port := &scriptedPort{}
	// exception frames are 5 bytes total
	exFrame := []byte{0x03, 0x83, 0x02}
	crc := CRC16(exFrame)
	port.reads.Write(append(exFrame, byte(crc), byte(crc>>8)))

	tr := NewRTUTransporter(port, fastRTUConfig())
	pdu, err := tr.SendRequest(3, []byte{0x03, 0x27, 0x0F, 0x00, 0x01})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	// the exception PDU travels up intact for the handler to classify
	assertBytesEqual(t, []byte{0x83, 0x02}, pdu)
}

func TestRTUTransporterSlaveIDMismatch(t *testing.T) {
	port := &scriptedPort{}
	frame := []byte{0x04, 0x01, 0x01, 0x01}
	crc := CRC16(frame)
	port.reads.Write(append(frame, byte(crc), byte(crc>>8)))

	tr := NewRTUTransporter(port, fastRTUConfig())
	if _, err := tr.SendRequest(3, []byte{0x01, 0x00, 0x02, 0x00, 0x01}); err == nil {
		t.Error("response from wrong slave accepted")
	}
}

func TestRTUTransporterCorruptCRC(t *testing.T) {
	port := &scriptedPort{}
	port.reads.Write([]byte{0x03, 0x01, 0x01, 0x01, 0x91, 0xF1})

	tr := NewRTUTransporter(port, fastRTUConfig())
	if _, err := tr.SendRequest(3, []byte{0x01, 0x00, 0x02, 0x00, 0x01}); err == nil {
		t.Error("corrupt response accepted")
	}
}

func TestRTUTransporterClose(t *testing.T) {
	port := &scriptedPort{}
	tr := NewRTUTransporter(port, fastRTUConfig())

	if !tr.IsConnected() {
		t.Error("expected connected before close")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}
	if tr.IsConnected() {
		t.Error("expected disconnected after close")
	}
	if _, err := tr.SendRequest(3, []byte{0x01, 0x00, 0x00, 0x00, 0x01}); !errors.Is(err, ErrTransporterClosed) {
		t.Errorf("expected ErrTransporterClosed, got %v", err)
	}
	// closing twice is fine
	if err := tr.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestRemainingFrameBytes(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		third    byte
		expected int
	}{
		{"exception", 0x83, 0x02, 2},
		{"read 1 byte", FuncCodeReadCoils, 1, 3},
		{"read 4 bytes", FuncCodeReadHoldingRegisters, 4, 6},
		{"write echo", FuncCodeWriteSingleRegister, 0x00, 5},
		{"write multiple echo", FuncCodeWriteMultipleRegisters, 0x00, 5},
		{"exception status", FuncCodeReadExceptionStatus, 0x55, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := remainingFrameBytes(tt.funcCode, tt.third)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}

	if _, err := remainingFrameBytes(0x7F, 0); !errors.Is(err, ErrInvalidFunction) {
		t.Errorf("expected ErrInvalidFunction, got %v", err)
	}
}
