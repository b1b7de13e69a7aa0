package util

import (
	"bytes"
	"context"
	"testing"
)

// BenchmarkReadChunks measures the hand-off cost of the input pump
// that feeds every Send.
func BenchmarkReadChunks(b *testing.B) {
	payload := bytes.Repeat([]byte("X"), 4*DefaultBufSize)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		ReadChunks(context.Background(), bytes.NewReader(payload), func([]byte) error { //nolint:errcheck
			return nil
		})
	}
}

// BenchmarkBufPool measures the allocation advantage of sync.Pool
// buffer reuse versus fresh allocation.
func BenchmarkBufPool(b *testing.B) {
	b.Run("pool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := GetBuf()
			_ = (*buf)[0]
			PutBuf(buf)
		}
	})
	b.Run("alloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, DefaultBufSize)
			_ = buf[0]
		}
	})
}
