package srv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type blockingService struct {
	mu       sync.Mutex
	stop     chan struct{}
	shutdown int
	order    *[]string
	name     string
}

func newBlockingService(name string, order *[]string) *blockingService {
	return &blockingService{stop: make(chan struct{}), order: order, name: name}
}

func (s *blockingService) Start(ctx context.Context) error {
	<-s.stop
	return nil
}

func (s *blockingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown++
	*s.order = append(*s.order, s.name)
	if s.shutdown == 1 {
		close(s.stop)
	}
	return nil
}

type exitService struct{}

func (exitService) Start(ctx context.Context) error    { return ErrExit }
func (exitService) Shutdown(ctx context.Context) error { return nil }

func TestRun_CancelShutsDownInReverseOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var order []string
	first := newBlockingService("first", &order)
	second := newBlockingService("second", &order)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, []Service{first, second}) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestRun_ExitStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	var order []string
	blocking := newBlockingService("repl-peer", &order)
	cleaned := false
	cleanup := NewCleanup(func() error {
		cleaned = true
		return nil
	})

	err := Run(context.Background(), []Service{cleanup, blocking, exitService{}})
	require.NoError(t, err)
	assert.True(t, cleaned)
	assert.Equal(t, []string{"repl-peer"}, order)
}

type failingService struct{ err error }

func (f failingService) Start(ctx context.Context) error    { return f.err }
func (f failingService) Shutdown(ctx context.Context) error { return nil }

func TestRun_PropagatesStartError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), []Service{failingService{err: boom}})
	assert.ErrorIs(t, err, boom)
}
