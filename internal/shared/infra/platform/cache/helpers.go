package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OpTimeout acota cada operación best-effort contra la caché.
const OpTimeout = 200 * time.Millisecond

// SafeGet lee de la caché tratando cualquier error como un miss.
func SafeGet(ctx context.Context, c Cache, key string, dest interface{}, log *zap.Logger) bool {
	if c == nil {
		return false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	hit, err := c.Get(cacheCtx, key, dest)
	if err != nil {
		log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

// SafeSet escribe en la caché sin propagar errores. Se ejecuta en línea para que
// una invalidación posterior nunca pueda adelantarse a la escritura.
func SafeSet(ctx context.Context, c Cache, key string, value interface{}, ttl int, log *zap.Logger) {
	if c == nil {
		return
	}
	// Sin cancelación heredada: la petición puede haber terminado y aun así queremos escribir.
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), OpTimeout)
	defer cancel()

	if err := c.Set(cacheCtx, key, value, ttl); err != nil {
		log.Warn("Cache update failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// SafeDelete invalida claves sin propagar errores.
func SafeDelete(ctx context.Context, c Cache, log *zap.Logger, keys ...string) {
	if c == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), OpTimeout)
	defer cancel()

	for _, key := range keys {
		if err := c.Delete(cacheCtx, key); err != nil {
			log.Warn("Cache deletion failed",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}
