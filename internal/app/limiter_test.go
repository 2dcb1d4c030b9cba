package app

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClassLimiter_SerializesSameKey(t *testing.T) {
	l := NewClassLimiter()
	key := classKey("school-1", "2024-09-02", "7", "A")

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock(key)
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("одновременно внутри было %d сохранений одного журнала", maxInside)
	}
	if len(l.byKey) != 0 {
		t.Fatalf("после освобождения ключи должны удаляться, осталось %d", len(l.byKey))
	}
}

func TestClassLimiter_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewClassLimiter()
	unlockA := l.lock(classKey("school-1", "2024-09-02", "7", "A"))
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.lock(classKey("school-1", "2024-09-02", "7", "Б"))
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("другой класс ждал чужую блокировку")
	}
}
