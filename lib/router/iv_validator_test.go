package router

import (
	"bytes"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIVFilter_ReceiveIV(t *testing.T) {
	f := NewIVFilter(time.Minute)
	a := bytes.Repeat([]byte{1}, 16)
	b := bytes.Repeat([]byte{2}, 16)

	assert.True(t, f.ReceiveIV(a))
	assert.True(t, f.ReceiveIV(b))
	assert.False(t, f.ReceiveIV(a), "duplicate IV")
	assert.False(t, f.ReceiveIV(bytes.Clone(b)), "duplicate IV in another buffer")
	assert.Equal(t, 2, f.Len())
}

func TestIVFilter_ForgetsAfterWindow(t *testing.T) {
	f := NewIVFilter(20 * time.Millisecond)
	iv := bytes.Repeat([]byte{7}, 16)

	assert.True(t, f.ReceiveIV(iv))
	assert.False(t, f.ReceiveIV(iv))
	assert.Eventually(t, func() bool { return f.ReceiveIV(iv) }, time.Second, 10*time.Millisecond)
}

func TestIVFilter_ConcurrentDuplicates(t *testing.T) {
	f := NewIVFilter(time.Minute)
	iv := bytes.Repeat([]byte{9}, 16)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.ReceiveIV(iv) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())
}
