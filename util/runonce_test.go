package util

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunOnce(t *testing.T) {
	calls := int64(0)
	firsts := int64(0)

	f := NewRunOnce(func() {
		atomic.AddInt64(&calls, 1)
	})

	wg := sync.WaitGroup{}
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f() {
				atomic.AddInt64(&firsts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls)
	assert.Equal(t, int64(1), firsts)
	assert.False(t, f())
}
