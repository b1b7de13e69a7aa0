package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the standard buffer size for local input (32 KiB).
const DefaultBufSize = 32 * 1024

// ReadChunks reads r into a pooled buffer and hands every chunk to fn
// until r reaches EOF, fn fails, or ctx is cancelled.  fn must not
// retain the slice after it returns.  EOF is not reported as an error.
//
// A Read blocked on r (typically stdin) cannot be interrupted; on
// cancellation ReadChunks returns at once and the reading goroutine
// exits after its current Read.
func ReadChunks(ctx context.Context, r io.Reader, fn func([]byte) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk)
	next := make(chan struct{})

	go func() {
		buf := GetBuf()
		defer PutBuf(buf)
		for {
			n, err := r.Read(*buf)
			select {
			case chunks <- chunk{(*buf)[:n], err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			// The consumer owns buf until it says otherwise.
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-chunks:
			if len(c.data) > 0 {
				if err := fn(c.data); err != nil {
					return err
				}
			}
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					return nil
				}
				return c.err
			}
			next <- struct{}{}
		}
	}
}

// IsHarmless returns true for errors that are expected during shutdown.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
