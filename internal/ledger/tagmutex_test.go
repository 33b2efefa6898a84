package ledger

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTagMutex_SerializesSameTag(t *testing.T) {
	t.Parallel()
	m := newTagMutex()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("A")
			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected at most one holder, saw %d", maxActive)
	}
	if m.size() != 0 {
		t.Errorf("expected lock table to drain, has %d entries", m.size())
	}
}

func TestTagMutex_DistinctTagsDoNotBlock(t *testing.T) {
	t.Parallel()
	m := newTagMutex()

	unlockA := m.Lock("A")
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("B")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
