package server

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestWithSignal(t *testing.T) {
	var exitCode atomic.Int32
	exitCode.Store(-1)
	orig := exit
	exit = func(code int) { exitCode.Store(int32(code)) }
	t.Cleanup(func() { exit = orig })

	ctx, stop := WithSignal(context.Background(), zaptest.NewLogger(t))
	defer stop()

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not canceled by SIGTERM")
	}

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	assert.Eventually(t, func() bool { return exitCode.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWithSignal_Stop(t *testing.T) {
	ctx, stop := WithSignal(context.Background(), zaptest.NewLogger(t))
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not cancel the context")
	}
}
