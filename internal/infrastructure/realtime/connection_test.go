package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSendAfterCloseFails(t *testing.T) {
	c := NewConnection(1, nil)
	c.Close(1000, "bye")
	require.Error(t, c.Send([]byte("late")))
}

func TestConnectionSendRacingCloseNeverPanics(t *testing.T) {
	// Send and Close overlap whenever a broadcast races a disconnect or a
	// session replacement; neither goroutine may crash.
	for i := 0; i < 500; i++ {
		c := NewConnection(1, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				_ = c.Send([]byte("x"))
			}
		}()
		go func() {
			defer wg.Done()
			c.Close(1000, "bye")
		}()
		wg.Wait()

		require.Error(t, c.Send([]byte("after close")))
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	c := NewConnection(1, nil)
	c.Close(1000, "bye")
	c.Close(1000, "bye again")
}

func TestConnectionBackpressureClosesSlowClient(t *testing.T) {
	c := NewConnection(1, nil)

	// fill the outbound buffer without a write loop draining it
	for i := 0; i < cap(c.send); i++ {
		require.NoError(t, c.Send([]byte("x")))
	}
	require.Error(t, c.Send([]byte("overflow")))

	select {
	case <-c.close:
	default:
		t.Fatal("overflowing the buffer should close the connection")
	}
}
