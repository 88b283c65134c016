package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Next(t *testing.T) {
	c := NewClockAt(10)
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, int64(12), c.Next())
	assert.Equal(t, int64(12), c.Current())
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClockAt(0)
	seen := make(chan int64, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seen <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]struct{})
	for s := range seen {
		unique[s] = struct{}{}
	}
	assert.Len(t, unique, 1000)
	assert.Equal(t, int64(1000), c.Current())
}
