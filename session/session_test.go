package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionCancel(t *testing.T) {
	s := New(context.Background(), nil)
	assert.False(t, s.Cancelled())

	s.Cancel()
	assert.True(t, s.Cancelled())
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
	assert.NoError(t, s.RequestContext().Err())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done should be closed after Cancel")
	}
}

func TestSessionStatus(t *testing.T) {
	var got []string
	s := New(context.Background(), func(msg string) { got = append(got, msg) })
	s.Statusf("page %d", 3)
	assert.Equal(t, []string{"page 3"}, got)

	assert.NotPanics(t, func() { New(context.Background(), nil).Statusf("dropped") })
}

func TestSessionErrorsConcurrent(t *testing.T) {
	s := New(context.Background(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddError()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Errors())
}
