package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evertweb/programajava-sub002/internal/application/inventory"
	"github.com/evertweb/programajava-sub002/internal/domain"
	"github.com/evertweb/programajava-sub002/pkg/logger"
)

var _ inventory.ProductLocker = (*Locker)(nil)

const (
	keyPrefix    = "ledger:lock:product:"
	pollInterval = 20 * time.Millisecond
)

// releaseScript borra la llave solo si sigue siendo nuestra (el TTL pudo expirar y otro tomarla).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker lock por producto compartido entre réplicas del libro (SET NX PX).
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewClient crea el cliente desde una URL redis:// y verifica la conexión.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: URL inválida: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// New construye el locker. ttl acota cuánto retiene el lock un proceso que muere sin liberarlo.
func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *Locker {
	if log == nil {
		log = logger.Nop()
	}
	return &Locker{client: client, ttl: ttl, log: log.Named("redislock")}
}

// Lock espera hasta adquirir el lock del producto o hasta que se cancele ctx.
func (l *Locker) Lock(ctx context.Context, productID string) (func(), error) {
	key := keyPrefix + productID
	token := uuid.New().String()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: redis lock %s: %v", domain.ErrServiceUnavailable, productID, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlockFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}
}

// release borra la llave con el script de comparación.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		// El TTL libera la llave igualmente.
		l.log.Warn().Err(err).Str("key", key).Msg("no se pudo liberar el lock")
	}
}
