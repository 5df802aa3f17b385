package transport

import (
	"context"
	"testing"
	"time"
)

func TestSerialTransport_PortName(t *testing.T) {
	transport := NewSerialTransport("/dev/ttyUSB0", 115200)

	if got := transport.PortName(); got != "/dev/ttyUSB0" {
		t.Errorf("PortName() = %s, want /dev/ttyUSB0", got)
	}
	if got := transport.BaudRate(); got != 115200 {
		t.Errorf("BaudRate() = %d, want 115200", got)
	}
}

func TestIPTransport_StatusTarget(t *testing.T) {
	transport := NewIPTransport("192.168.1.100", 5000)

	expected := "192.168.1.100:5000"
	actual := transport.StatusTarget()

	if actual != expected {
		t.Errorf("StatusTarget() = %s, want %s", actual, expected)
	}
}

func TestIPTransport_DefaultPort(t *testing.T) {
	transport := NewIPTransport("192.168.1.100", 0)

	expected := "192.168.1.100:5000"
	actual := transport.StatusTarget()

	if actual != expected {
		t.Errorf("Default port not applied. StatusTarget() = %s, want %s", actual, expected)
	}
}

func TestTransport_InitialState(t *testing.T) {
	serialTransport := NewSerialTransport("/dev/ttyUSB0", 115200)
	ipTransport := NewIPTransport("localhost", 5000)

	if serialTransport.Connected() {
		t.Error("Serial transport should not be connected initially")
	}

	if ipTransport.Connected() {
		t.Error("IP transport should not be connected initially")
	}
}

func TestTransport_WriteWithoutConnection(t *testing.T) {
	ctx := context.Background()
	serialTransport := NewSerialTransport("/dev/ttyUSB0", 115200)
	ipTransport := NewIPTransport("localhost", 5000)

	testData := []byte("test data")

	if err := serialTransport.WriteFrame(ctx, testData); err == nil {
		t.Error("WriteFrame should fail when not connected (serial)")
	}

	if err := ipTransport.WriteFrame(ctx, testData); err == nil {
		t.Error("WriteFrame should fail when not connected (tcp)")
	}
}

func TestTransport_ReadWithoutConnection(t *testing.T) {
	ctx := context.Background()
	serialTransport := NewSerialTransport("/dev/ttyUSB0", 115200)
	ipTransport := NewIPTransport("localhost", 5000)

	if _, err := serialTransport.ReadFrame(ctx); err == nil {
		t.Error("ReadFrame should fail when not connected (serial)")
	}

	if _, err := ipTransport.ReadFrame(ctx); err == nil {
		t.Error("ReadFrame should fail when not connected (tcp)")
	}
}

func TestTransport_ContextCancellation(t *testing.T) {
	serialTransport := NewSerialTransport("/dev/ttyUSB0", 115200)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	if err := serialTransport.Connect(ctx); err == nil {
		t.Error("Connect should respect context cancellation")
	} else if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTransport_ContextTimeout(t *testing.T) {
	ipTransport := NewIPTransport("10.255.255.1", 5000)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	time.Sleep(2 * time.Millisecond) // Ensure timeout

	err := ipTransport.Connect(ctx)
	if err == nil {
		t.Error("Connect should respect context deadline")
	}
}
