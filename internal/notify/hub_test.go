package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyReachesOnlyThatCustomer(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("cust-a")
	defer cancelA()
	b, cancelB := h.Subscribe("cust-b")
	defer cancelB()

	h.Notify("cust-a", Update{Type: "session_processed"})

	select {
	case u := <-a:
		assert.Equal(t, "session_processed", u.Type)
		assert.Equal(t, "cust-a", u.CustomerID)
		assert.False(t, u.Timestamp.IsZero())
	default:
		t.Fatal("expected an update for cust-a")
	}
	select {
	case u := <-b:
		t.Fatalf("cust-b got %+v", u)
	default:
	}
}

func TestNotifyDropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("cust")
	defer cancel()

	for i := 0; i < bufferSize+5; i++ {
		h.Notify("cust", Update{Type: "tick"})
	}

	assert.Len(t, ch, bufferSize)
}

func TestCancelClosesAndUnregisters(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("cust")
	require.Equal(t, 1, h.Subscribers("cust"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("cust"))

	h.Notify("cust", Update{Type: "after-cancel"})
}
