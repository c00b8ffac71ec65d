package player

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeVLC is an in-process RC endpoint speaking the free-text line protocol.
type fakeVLC struct {
	listener net.Listener
	respond  func(command string) string
	commands chan string
}

func newFakeVLC(t *testing.T, respond func(command string) string) (*fakeVLC, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeVLC{listener: listener, respond: respond, commands: make(chan string, 32)}
	go f.serve()
	t.Cleanup(func() { _ = listener.Close() })
	return f, listener.Addr().String()
}

func (f *fakeVLC) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeVLC) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_, _ = conn.Write([]byte("VLC media player\r\n> "))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		command := strings.TrimSpace(scanner.Text())
		select {
		case f.commands <- command:
		default:
		}
		if out := f.respond(command); out != "" {
			_, _ = conn.Write([]byte(out))
		}
	}
}

func vlcTestOptions() Options {
	return Options{ConnectAttempts: 2, ConnectDelay: 10 * time.Millisecond, RequestTimeout: time.Second}
}

func TestVLCStatusParsing(t *testing.T) {
	t.Parallel()
	_, addr := newFakeVLC(t, func(command string) string {
		switch command {
		case "status":
			return "( new input: file:///media/show.mp4 )\r\n( audio volume: 256 )\r\n( state playing )\r\n"
		case "get_time":
			return "125\r\n"
		case "get_length":
			return "600\r\n"
		}
		return ""
	})

	client := NewVLC(addr, vlcTestOptions(), zerolog.Nop())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = client.Disconnect() }()

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.IsPlaying || status.State != StatePlaying {
		t.Fatalf("expected playing, got %+v", status)
	}
	if status.PositionSeconds != 125 || status.DurationSeconds != 600 {
		t.Fatalf("time parse mismatch: %+v", status)
	}
	if status.CurrentFile != "/media/show.mp4" {
		t.Fatalf("input parse mismatch: %q", status.CurrentFile)
	}
}

func TestVLCStatusDefaultsToStopped(t *testing.T) {
	t.Parallel()
	_, addr := newFakeVLC(t, func(command string) string {
		// No recognizable state text anywhere.
		return "\r\n> "
	})

	client := NewVLC(addr, vlcTestOptions(), zerolog.Nop())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = client.Disconnect() }()

	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != StateStopped || status.IsPlaying {
		t.Fatalf("absent state text should read stopped, got %+v", status)
	}
	if status.PositionSeconds != 0 || status.DurationSeconds != 0 {
		t.Fatalf("absent numbers should read zero, got %+v", status)
	}
}

func TestVLCPlayClearsThenAdds(t *testing.T) {
	t.Parallel()
	fake, addr := newFakeVLC(t, func(command string) string { return "" })

	client := NewVLC(addr, vlcTestOptions(), zerolog.Nop())
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = client.Disconnect() }()

	if err := client.Play(context.Background(), "/media/show.mp4"); err != nil {
		t.Fatalf("play: %v", err)
	}

	first := <-fake.commands
	second := <-fake.commands
	if first != "clear" || second != "add /media/show.mp4" {
		t.Fatalf("unexpected command sequence: %q, %q", first, second)
	}
}

func TestVLCConnectRetriesThenFails(t *testing.T) {
	t.Parallel()
	// Grab a port and close it so the dial is refused.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	client := NewVLC(addr, vlcTestOptions(), zerolog.Nop())
	err = client.Connect(context.Background())
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected typed connection error, got %v", err)
	}
	if !IsConnectionError(err) {
		t.Fatal("typed connection error must classify as connection-class")
	}
}

func TestVLCCommandWithoutConnect(t *testing.T) {
	t.Parallel()
	client := NewVLC("127.0.0.1:1", vlcTestOptions(), zerolog.Nop())
	if err := client.Stop(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
