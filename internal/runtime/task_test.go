package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskSettlesOnce(t *testing.T) {
	task := newTask()
	assert.False(t, task.Settled())

	task.settle(Request{ID: 1, Completed: true}, nil)
	task.settle(Request{ID: 2}, errors.New("ignored"))

	require.True(t, task.Settled())
	req, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RequestID(1), req.ID)

	select {
	case <-task.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestTaskWaitHonoursContext(t *testing.T) {
	task := newTask()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, task.Settled())
}

func TestHandleWaitReturnsError(t *testing.T) {
	boom := errors.New("boom")
	h := Handle{RequestID: 3, Task: newTask()}
	h.Task.settle(Request{ID: 3}, boom)

	req, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, req.Pending())
}
