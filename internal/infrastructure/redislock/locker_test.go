package redislock_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evertweb/programajava-sub002/internal/infrastructure/redislock"
)

// Requiere un Redis real: REDIS_TEST_URL=redis://localhost:6379/15
func newLocker(t *testing.T) *redislock.Locker {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL no definido")
	}
	client, err := redislock.NewClient(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client, 5*time.Second, nil)
}

func TestLocker_ExclusionYLiberacion(t *testing.T) {
	l := newLocker(t)
	product := "TEST-" + t.Name()

	unlock, err := l.Lock(context.Background(), product)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, product)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	again, err := l.Lock(context.Background(), product)
	require.NoError(t, err)
	again()
}

func TestLocker_UnlockConcurrenteLiberaUnaVez(t *testing.T) {
	l := newLocker(t)
	product := "TEST-" + t.Name()

	unlock, err := l.Lock(context.Background(), product)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()

	// Un segundo dueño no debe perder su lock por llamadas tardías al unlock anterior.
	second, err := l.Lock(context.Background(), product)
	require.NoError(t, err)
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, product)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	second()
}
