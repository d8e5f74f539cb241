package inventory

import (
	"context"
	"sync"
)

var _ ProductLocker = (*KeyedLocker)(nil)

// KeyedLocker mutex en proceso indexado por producto. Las entradas del mapa se liberan
// cuando no quedan interesados, así el mapa no crece con productos inactivos.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker construye el locker en proceso.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock bloquea el producto hasta que se llame unlock o se cancele ctx.
func (k *KeyedLocker) Lock(ctx context.Context, productID string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[productID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[productID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				k.release(productID, l)
			})
		}, nil
	case <-ctx.Done():
		k.release(productID, l)
		return nil, ctx.Err()
	}
}

func (k *KeyedLocker) release(productID string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, productID)
	}
}
