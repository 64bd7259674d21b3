package util

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

var lastItemID atomic.Int64

// NewItemID returns a millisecond timestamp id that is strictly greater than any id
// previously returned by this process.
func NewItemID() int64 {
	for {
		now := time.Now().UnixMilli()
		last := lastItemID.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if lastItemID.CompareAndSwap(last, next) {
			return next
		}
	}
}
