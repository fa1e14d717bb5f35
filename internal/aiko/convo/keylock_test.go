package convo

import (
	"sync"
	"testing"
)

func TestKeyedLock_SerializesSameKey(t *testing.T) {
	kl := NewKeyedLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("@alice:test")
			counter++
			kl.Unlock("@alice:test")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100 (lost updates without serialization)", counter)
	}
}

func TestKeyedLock_IndependentKeys(t *testing.T) {
	kl := NewKeyedLock()

	kl.Lock("a")
	done := make(chan struct{})
	go func() {
		// Must not block on a different key.
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()
	<-done
	kl.Unlock("a")
}
