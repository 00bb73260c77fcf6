package utils

import "sync"

// RingBuffer 固定容量的环形缓冲区，写满后覆盖最旧的元素，并发安全
type RingBuffer[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int // 下一个写入位置
	full bool
}

// NewRingBuffer 创建环形缓冲区，容量非正时取 64
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 64
	}
	return &RingBuffer[T]{buf: make([]T, capacity)}
}

// Push 写入一个元素
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.next] = item
	rb.next++
	if rb.next == len(rb.buf) {
		rb.next = 0
		rb.full = true
	}
}

// Len 当前元素数量
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.lenLocked()
}

func (rb *RingBuffer[T]) lenLocked() int {
	if rb.full {
		return len(rb.buf)
	}
	return rb.next
}

// Cap 缓冲区容量
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf)
}

// GetLast 最近 n 个元素，从旧到新；n 非正或超出时返回全部
func (rb *RingBuffer[T]) GetLast(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	size := rb.lenLocked()
	if size == 0 {
		return nil
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]T, n)
	start := rb.next - n
	if start < 0 {
		start += len(rb.buf)
	}
	for i := range out {
		out[i] = rb.buf[(start+i)%len(rb.buf)]
	}
	return out
}
