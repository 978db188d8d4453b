package cmd

import (
	"github.com/emrgen/canvas/internal/cache"
	"github.com/emrgen/canvas/internal/config"
	"github.com/emrgen/canvas/internal/queue"
	"github.com/emrgen/canvas/internal/ratelimit"
	"github.com/emrgen/canvas/internal/search"
	"github.com/emrgen/canvas/internal/service"
	"github.com/emrgen/canvas/internal/storage"
	"github.com/emrgen/canvas/internal/store"
)

// buildService assembles a share service from the environment config.
// Optional collaborators (redis, meilisearch, kafka) stay nil when not
// configured; the service falls back to synchronous, uncached behavior.
func buildService(cnf config.Config) (*service.ShareService, store.Store, *queue.KafkaQueue, error) {
	db, err := config.GetDb(cnf)
	if err != nil {
		return nil, nil, nil, err
	}
	st := store.NewGormStore(db)

	objects, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:      cnf.MinioEndpoint,
		AccessKey:     cnf.MinioAccessKey,
		SecretKey:     cnf.MinioSecretKey,
		UseSSL:        cnf.MinioUseSSL,
		PrivateBucket: cnf.PrivateBucket,
		PublicBucket:  cnf.PublicBucket,
		PublicBase:    cnf.PublicBaseURL,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	deps := service.Deps{
		Store:       st,
		Objects:     objects,
		Compression: cnf.Compression,
	}

	if cnf.MeiliURL != "" {
		deps.Index = search.NewMeili(cnf.MeiliURL, cnf.MeiliAPIKey)
	}

	if cnf.RedisAddr != "" {
		redisCache := cache.NewRedis(cnf.RedisAddr, cnf.RedisPassword)
		deps.Cache = redisCache
		deps.Limiter = ratelimit.NewLimiter(redisCache.Client(), cnf.ShareRateLimit, cnf.ShareRateWindow)
	}

	var kq *queue.KafkaQueue
	if cnf.KafkaBrokers != "" {
		kq, err = queue.NewKafkaQueue(cnf.KafkaBrokers, cnf.KafkaTopic, cnf.KafkaGroup)
		if err != nil {
			return nil, nil, nil, err
		}
		deps.Queue = kq
	}

	return service.NewShareService(deps), st, kq, nil
}
