package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_OpenResumesSession(t *testing.T) {
	svc := NewService(&memStore{}, Config{})

	f, err := svc.Open("test_listing", "")
	require.NoError(t, err)
	require.NotEmpty(t, f.ID())

	again, err := svc.Open("test_listing", f.ID())
	require.NoError(t, err)
	assert.Same(t, f, again)

	other, err := svc.Open("test_signup", f.ID())
	require.NoError(t, err)
	assert.NotEqual(t, f.ID(), other.ID(), "a session belongs to one form")

	_, err = svc.Open("nope", "")
	assert.ErrorIs(t, err, ErrUnknownForm)
	assert.Equal(t, 2, svc.ActiveCount())
}

func TestService_PeekDoesNotCreate(t *testing.T) {
	svc := NewService(&memStore{}, Config{})

	state, err := svc.Peek("test_listing", "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Step)
	assert.Equal(t, "test_listing", state.Form)
	assert.Zero(t, svc.ActiveCount())

	f, _ := svc.Open("test_listing", "")
	require.NoError(t, f.SetField("name", "Urea"))
	state, err = svc.Peek("test_listing", f.ID())
	require.NoError(t, err)
	assert.Equal(t, "Urea", state.Values["name"])

	_, err = svc.Peek("nope", "")
	assert.ErrorIs(t, err, ErrUnknownForm)
}

func TestService_LookupAndDiscard(t *testing.T) {
	svc := NewService(&memStore{}, Config{})
	f, _ := svc.Open("test_signup", "")

	got, err := svc.Lookup(f.ID())
	require.NoError(t, err)
	assert.Same(t, f, got)

	svc.Discard(f.ID())
	_, err = svc.Lookup(f.ID())
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestService_SweepKeepsPending(t *testing.T) {
	st := &memStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := NewService(st, Config{SessionTTL: time.Minute})

	idle, _ := svc.Open("test_signup", "")
	busy, _ := svc.Open("test_signup", "")
	require.NoError(t, busy.SetField("email", "a@b.co"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, _ = busy.Submit(context.Background(), SubmitOptions{})
	}()
	<-st.entered

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, svc.Sweep())

	_, err := svc.Lookup(idle.ID())
	assert.ErrorIs(t, err, ErrFormNotFound)
	_, err = svc.Lookup(busy.ID())
	assert.NoError(t, err)

	close(st.block)
	wg.Wait()
	require.NoError(t, svc.WaitForSubmissions(context.Background()))
	assert.Equal(t, 1, svc.Sweep())
	assert.Zero(t, svc.ActiveCount())
}

func TestService_SweepKeepsRecent(t *testing.T) {
	svc := NewService(&memStore{}, Config{SessionTTL: time.Hour})
	_, _ = svc.Open("test_signup", "")
	assert.Zero(t, svc.Sweep())
	assert.Equal(t, 1, svc.ActiveCount())
}

func TestService_StartSweeperStops(t *testing.T) {
	svc := NewService(&memStore{}, Config{SessionTTL: time.Millisecond})
	_, _ = svc.Open("test_signup", "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return svc.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
