package modbus

import (
	"io"
	"log"
	"net"
	"testing"
	"time"

	modbus_server "github.com/hootrhino/mbserver"
	"github.com/hootrhino/mbserver/store"
)

const testServerAddr = "127.0.0.1:15502"

// startTestTCPServer initializes a Modbus TCP slave with sample holding
// registers on a local port.
func startTestTCPServer(t *testing.T) *modbus_server.Server {
	t.Helper()

	server := modbus_server.NewServer(store.NewInMemoryStore(), 1)
	server.SetLogger(io.Discard)
	server.SetErrorHandler(func(err error) {
		log.Printf("Modbus server error: %v", err)
	})

	sampleHoldingRegisters := make([]uint16, 10)
	for i := range sampleHoldingRegisters {
		sampleHoldingRegisters[i] = 0xABCD
	}
	if err := server.SetHoldingRegisters(sampleHoldingRegisters); err != nil {
		t.Fatalf("Failed to set holding registers: %v", err)
	}

	if err := server.Start(testServerAddr); err != nil {
		t.Fatalf("Failed to start Modbus server: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	return server
}

func TestTCPHandlerReadHoldingRegisters(t *testing.T) {
	server := startTestTCPServer(t)
	defer server.Stop()

	conn, err := net.Dial("tcp", testServerAddr)
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	handler := NewModbusTCPHandler(conn, 5*time.Second)
	if handler.GetMode() != "TCP" {
		t.Errorf("expected mode TCP, got %s", handler.GetMode())
	}
	if !handler.IsConnected() {
		t.Error("handler should report connected")
	}

	for i := 0; i < 2; i++ {
		result, err := handler.ReadHoldingRegisters(1, uint16(i), 1)
		if err != nil {
			t.Fatalf("ReadHoldingRegisters failed: %v", err)
		}
		assertUint16Equal(t, []uint16{0xABCD}, result)
	}

	result, err := handler.ReadHoldingRegisters(1, 0, 10)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}
	if len(result) != 10 {
		t.Fatalf("expected 10 registers, got %d", len(result))
	}
	for i, v := range result {
		if v != 0xABCD {
			t.Errorf("register %d: expected 0xABCD, got 0x%04X", i, v)
		}
	}

	if err := handler.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if handler.IsConnected() {
		t.Error("handler should report disconnected after Close")
	}
}

func TestTCPHandlerRejectsInvalidSlaveID(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	handler := NewModbusTCPHandler(client, time.Second)
	if _, err := handler.ReadHoldingRegisters(248, 0, 1); err == nil {
		t.Error("slave ID 248 accepted")
	}
	if _, err := handler.ExchangePdu(300, []byte{0x03, 0x00, 0x00, 0x00, 0x01}); err == nil {
		t.Error("slave ID 300 accepted for raw exchange")
	}
}

func TestTCPHandlerRejectsOversizedRequest(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	handler := NewModbusTCPHandler(client, time.Second)
	// quantity validation fires before any byte hits the wire, so the
	// pipe with no reader does not block these calls
	if _, err := handler.ReadHoldingRegisters(1, 0, MaxReadRegisters+1); err == nil {
		t.Error("oversized read accepted")
	}
	if err := handler.WriteMultipleRegisters(1, 0, make([]uint16, MaxWriteRegisters+1)); err == nil {
		t.Error("oversized write accepted")
	}
	if err := handler.WriteMultipleCoils(1, 0, nil); err == nil {
		t.Error("empty coil write accepted")
	}
}

// exceptionServer fakes a Modbus TCP slave that answers every request with
// an illegal data address exception.
func exceptionServer(conn net.Conn) {
	go func() {
		packager := NewTCPPackager()
		header := make([]byte, TCPHeaderLength)
		for {
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			length := int(header[4])<<8 | int(header[5])
			body := make([]byte, length-1)
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
			txID := uint16(header[0])<<8 | uint16(header[1])
			frame, _ := packager.Pack(txID, header[6], []byte{body[0] | ExceptionBit, ExceptionIllegalDataAddress})
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()
}

func TestTCPHandlerCachesDeviceException(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	exceptionServer(server)

	handler := NewModbusTCPHandler(client, time.Second)
	_, err := handler.ReadHoldingRegisters(1, 9999, 1)
	if err == nil {
		t.Fatal("expected device exception")
	}

	lastErr := handler.GetLastModbusError()
	if lastErr == nil {
		t.Fatal("device exception not cached")
	}
	if lastErr.FunctionCode != FuncCodeReadHoldingRegisters || lastErr.ExceptionCode != ExceptionIllegalDataAddress {
		t.Errorf("unexpected cached exception: %+v", lastErr)
	}
}
