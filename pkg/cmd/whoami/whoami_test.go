package whoami

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/itslogin/pkg/session/impl/memory"
	"github.com/mpapenbr/itslogin/pkg/views"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrintSession(t *testing.T) {
	store, err := memory.New(nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSession(context.Background(), store, &buf))
	assert.Equal(t, "not logged in\n", buf.String())

	require.NoError(t, store.Set(context.Background(), "u-42"))
	buf.Reset()
	require.NoError(t, printSession(context.Background(), store, &buf))
	assert.Equal(t, "u-42\n", buf.String())
}

func TestFollowSession(t *testing.T) {
	store, err := memory.New(nil, []memory.Option{memory.WithInitialAuthID("u-1")})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	var buf syncBuffer
	done := make(chan error, 1)
	go func() { done <- followSession(ctx, store, &buf) }()

	assert.Eventually(t, func() bool { return strings.Contains(buf.String(), "u-1") },
		time.Second, 10*time.Millisecond)
	require.NoError(t, store.Set(context.Background(), "u-2"))
	assert.Eventually(t, func() bool { return strings.Contains(buf.String(), "u-2") },
		time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestShowView(t *testing.T) {
	store, err := memory.New(nil, []memory.Option{memory.WithInitialAuthID("u-42")})
	require.NoError(t, err)

	asRole = "student"
	t.Cleanup(func() { asRole = "" })
	var buf bytes.Buffer
	require.NoError(t, showView(context.Background(), store, &buf))
	assert.Contains(t, buf.String(), "u-42")

	empty, err := memory.New(nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, showView(context.Background(), empty, &buf), views.ErrNoAuthID)
}
