package tasks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryFiresRepeatedly(t *testing.T) {
	s := New()
	var count int64
	s.Every("tick", 10*time.Millisecond, func() error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	s.Start()
	time.Sleep(45 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&count), int64(3))
}

func TestStopHaltsFurtherTicks(t *testing.T) {
	s := New()
	var count int64
	s.Every("tick", 10*time.Millisecond, func() error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	s.Start()
	time.Sleep(25 * time.Millisecond)
	s.Stop()
	after := atomic.LoadInt64(&count)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(&count))
}

func TestDebounceCoalescesRapidCalls(t *testing.T) {
	s := New()
	var count int64
	for i := 0; i < 5; i++ {
		s.Debounce(20*time.Millisecond, func() error {
			atomic.AddInt64(&count, 1)
			return nil
		})
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&count))
}
