package util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

func TestReadChunks(t *testing.T) {
	input := strings.NewReader("hello world\n")
	var out bytes.Buffer

	err := ReadChunks(context.Background(), input, func(b []byte) error {
		out.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	if got := out.String(); got != "hello world\n" {
		t.Errorf("output = %q, want %q", got, "hello world\n")
	}
}

// TestReadChunks_LargeInput checks input larger than one pooled buffer
// arrives complete and in order.
func TestReadChunks_LargeInput(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), DefaultBufSize/8)
	var out bytes.Buffer
	chunks := 0

	err := ReadChunks(context.Background(), bytes.NewReader(payload), func(b []byte) error {
		chunks++
		out.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Errorf("got %d bytes, want %d", out.Len(), len(payload))
	}
	if chunks < 2 {
		t.Errorf("chunks = %d, want at least 2", chunks)
	}
}

func TestReadChunks_CallbackError(t *testing.T) {
	boom := errors.New("boom")
	err := ReadChunks(context.Background(), strings.NewReader("x"), func([]byte) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

// TestReadChunks_Cancel checks a reader that never returns does not
// block cancellation.
func TestReadChunks_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ReadChunks(ctx, pr, func([]byte) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReadChunks did not return after cancel")
	}
}

func TestIsHarmless(t *testing.T) {
	if !IsHarmless(nil) {
		t.Error("nil should be harmless")
	}
	if !IsHarmless(io.EOF) {
		t.Error("io.EOF should be harmless")
	}
	if !IsHarmless(net.ErrClosed) {
		t.Error("net.ErrClosed should be harmless")
	}
	if IsHarmless(io.ErrUnexpectedEOF) {
		t.Error("ErrUnexpectedEOF should NOT be harmless")
	}
}
