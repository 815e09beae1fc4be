package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type signallingRunner struct {
	ran chan struct{}
}

func (r *signallingRunner) Execute(ctx context.Context) (*Report, error) {
	select {
	case r.ran <- struct{}{}:
	default:
	}
	return &Report{}, nil
}

func TestSweeper_RunsOnIntervalUntilCancelled(t *testing.T) {
	runner := &signallingRunner{ran: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSweeper(runner, 5*time.Millisecond, logrus.New())
	s.Start(ctx)

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran a pass")
	}

	cancel()
	time.Sleep(100 * time.Millisecond)
	for len(runner.ran) > 0 {
		<-runner.ran
	}
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, runner.ran, "sweeper kept running after cancellation")
}
