package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pverrors "github.com/grovetools/pkgview/errors"
)

func TestMailboxRunsJobsInOrder(t *testing.T) {
	m := newMailbox(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.loop(ctx) }()

	var got []int
	for i := 0; i < 10; i++ {
		require.True(t, m.post(func() { got = append(got, i) }))
	}
	require.NoError(t, m.call(ctx, func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestMailboxCloseDrainsQueuedJobs(t *testing.T) {
	m := newMailbox(4)
	ran := 0
	for i := 0; i < 3; i++ {
		require.True(t, m.post(func() { ran++ }))
	}

	m.close()
	m.close()
	assert.Equal(t, 3, ran)
	assert.False(t, m.post(func() { ran++ }))

	err := m.call(context.Background(), func() {})
	assert.True(t, pverrors.Is(err, pverrors.ErrCodeEngineClosed))
}

func TestMailboxCallHonoursContext(t *testing.T) {
	m := newMailbox(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Nobody consumes the mailbox.
	err := m.call(ctx, func() {})
	assert.True(t, pverrors.IsCancellation(err))
}

func TestMailboxCloseWaitsForConsumer(t *testing.T) {
	m := newMailbox(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- m.loop(ctx) }()

	running := make(chan struct{})
	release := make(chan struct{})
	var order []string
	require.True(t, m.post(func() {
		close(running)
		<-release
		order = append(order, "running")
	}))
	<-running
	require.True(t, m.post(func() { order = append(order, "queued") }))

	closed := make(chan struct{})
	go func() {
		m.close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("close returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-closed
	require.NoError(t, <-stopped)
	assert.Equal(t, []string{"running", "queued"}, order)
}

func TestMailboxSingleConsumer(t *testing.T) {
	m := newMailbox(1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.loop(ctx) }()
	require.NoError(t, m.call(ctx, func() {}))

	err := m.loop(ctx)
	assert.True(t, pverrors.Is(err, pverrors.ErrCodeInternal))
	cancel()
	m.close()
}
