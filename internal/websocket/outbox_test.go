package websocket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutbox_PreservesOrderAcrossPushes(t *testing.T) {
	o := NewOutbox()
	o.Push(1)
	o.Push(2)
	o.Push(3)

	<-o.Ready()
	assert.Equal(t, []interface{}{1, 2, 3}, o.Drain())
	assert.Empty(t, o.Drain())
}

func TestOutbox_ConcurrentPushNeverBlocks(t *testing.T) {
	o := NewOutbox()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				o.Push(j)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, o.Drain(), 800)
}
