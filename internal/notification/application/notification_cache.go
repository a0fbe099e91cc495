package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	notificationDomain "github.com/davicafu/passport-notifier/internal/notification/domain"
	sharedCache "github.com/davicafu/passport-notifier/internal/shared/infra/platform/cache"
)

const (
	notificationTTLSecs = 120
	statsTTLSecs        = 30
	generationTTLSecs   = 24 * 60 * 60
)

// notificationCache agrupa las claves que usan el servicio y el motor de entrega.
// Todas las operaciones son best-effort: un fallo de caché nunca falla el caso de uso.
type notificationCache struct {
	cache sharedCache.Cache
	log   *zap.Logger
}

func (c notificationCache) getByID(ctx context.Context, id uuid.UUID) (*notificationDomain.Notification, bool) {
	var n notificationDomain.Notification
	if !sharedCache.SafeGet(ctx, c.cache, notificationDomain.NotificationCacheKeyByID(id), &n, c.log) {
		return nil, false
	}
	return &n, true
}

func (c notificationCache) setByID(ctx context.Context, n *notificationDomain.Notification) {
	sharedCache.SafeSet(ctx, c.cache, notificationDomain.NotificationCacheKeyByID(n.ID), n, notificationTTLSecs, c.log)
}

// invalidate borra la entrada por id y rota la generación de stats.
func (c notificationCache) invalidate(ctx context.Context, id uuid.UUID) {
	if c.cache == nil {
		return
	}
	if id != uuid.Nil {
		sharedCache.SafeDelete(ctx, c.cache, c.log, notificationDomain.NotificationCacheKeyByID(id))
	}
	sharedCache.SafeSet(ctx, c.cache, notificationDomain.StatsGenerationKey, uuid.NewString(), generationTTLSecs, c.log)
}

func (c notificationCache) statsKey(ctx context.Context, v notificationDomain.Viewer) string {
	gen := "0"
	var stored string
	if sharedCache.SafeGet(ctx, c.cache, notificationDomain.StatsGenerationKey, &stored, c.log) && stored != "" {
		gen = stored
	}
	return notificationDomain.StatsCacheKey(gen, v)
}

func (c notificationCache) getStats(ctx context.Context, key string) (*Stats, bool) {
	var st Stats
	if !sharedCache.SafeGet(ctx, c.cache, key, &st, c.log) {
		return nil, false
	}
	return &st, true
}

func (c notificationCache) setStats(ctx context.Context, key string, st *Stats) {
	sharedCache.SafeSet(ctx, c.cache, key, st, statsTTLSecs, c.log)
}
