package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evertweb/programajava-sub002/internal/application/inventory"
)

func TestKeyedLocker_ExclusionPorProducto(t *testing.T) {
	l := inventory.NewKeyedLocker()
	unlock, err := l.Lock(context.Background(), "FUE-1")
	require.NoError(t, err)

	// Otro producto no queda bloqueado.
	other, err := l.Lock(context.Background(), "ACE-1")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "FUE-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotente

	again, err := l.Lock(context.Background(), "FUE-1")
	require.NoError(t, err)
	again()
}
