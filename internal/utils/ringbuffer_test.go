package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer[int](3)
	assert.Nil(t, rb.GetLast(0))

	rb.Push(1)
	rb.Push(2)
	assert.Equal(t, []int{1, 2}, rb.GetLast(0))

	rb.Push(3)
	rb.Push(4)
	rb.Push(5)
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, []int{3, 4, 5}, rb.GetLast(0))
	assert.Equal(t, []int{4, 5}, rb.GetLast(2))
	assert.Equal(t, []int{3, 4, 5}, rb.GetLast(10))
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	assert.Equal(t, 64, NewRingBuffer[string](0).Cap())
}

func TestRingBufferConcurrentPush(t *testing.T) {
	rb := NewRingBuffer[int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rb.Push(i*100 + j)
				_ = rb.GetLast(4)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, rb.Len())
}
