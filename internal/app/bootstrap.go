package app

import (
	"context"

	"go.uber.org/zap"

	"feedsync/internal/app/feed"
	"feedsync/internal/app/health"
	"feedsync/internal/app/notify"
	"feedsync/internal/app/profile"
	"feedsync/internal/app/readstate"
	"feedsync/internal/app/session"
	"feedsync/internal/config"
	"feedsync/internal/gateways/api"
	"feedsync/internal/gateways/websocket"
	"feedsync/internal/providers/redis"
	"feedsync/internal/render"
	"feedsync/internal/router"
	"feedsync/internal/utils"
)

type Application struct {
	Router    *router.Router
	Session   *session.Context
	Store     *feed.Store
	Paginator *feed.Paginator
	Tracker   *readstate.Tracker
}

// remoteLog composes the two gateway halves into the remote log interface:
// the websocket client streams the tail, the API client serves pages and
// single-message lookups.
type remoteLog struct {
	ws  *websocket.Client
	api *api.Client
}

func (r *remoteLog) SubscribeTail(ctx context.Context, n int) (<-chan feed.Event, error) {
	return r.ws.SubscribeTail(ctx, n)
}

func (r *remoteLog) FetchPage(ctx context.Context, beforeKey string, limit int) ([]*feed.Message, error) {
	return r.api.FetchPage(ctx, beforeKey, limit)
}

func (r *remoteLog) Get(ctx context.Context, key string) (*feed.Message, error) {
	return r.api.Get(ctx, key)
}

// Bootstrap wires the sync engine and starts it on the given context. The
// startup order matters: the watermark is loaded and the session context
// begun before the reconciler subscribes, so historical messages are never
// classified against an unread watermark.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	bus := utils.NewEventBus()
	go bus.Run(ctx)

	redisProvider := redis.NewRedisProvider(cfg.RedisURL, logger)
	watermarks := redis.NewWatermarkStore(redisProvider)

	apiClient := api.NewClient(cfg.FeedAPIURL, cfg.PageTimeout, logger)
	wsClient := websocket.NewClient(cfg.FeedWSURL, logger, bus)
	remote := &remoteLog{ws: wsClient, api: apiClient}

	sess := session.NewContext(cfg.SessionUserID)
	store := feed.NewStore(cfg.StoreCeiling, cfg.StoreFloor)
	cache := profile.NewCache(apiClient.Profiles(), logger)
	renderer := render.NewConsole(logger)
	policy := notify.NewPolicy(sess)
	tracker := readstate.NewTracker(sess, watermarks, store, renderer, logger)

	bus.Subscribe(websocket.EventFeedConnected, func(utils.Event) {
		renderer.OnFeedStateChanged(true)
	})
	bus.Subscribe(websocket.EventFeedDisconnected, func(utils.Event) {
		renderer.OnFeedStateChanged(false)
	})

	if err := tracker.Load(ctx); err != nil {
		return nil, err
	}

	reconciler := feed.NewReconciler(remote, cache, store, renderer, policy, tracker, sess, logger, cfg.TailSize)
	paginator := feed.NewPaginator(remote, store, reconciler, logger, cfg.PageSize, cfg.PageTimeout)

	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Sugar().Errorw("Reconciler stopped", "error", err)
		}
	}()

	healthHandler := health.NewHandler(&utils.HealthChecker{
		Redis: redisProvider.Client,
		Feed:  wsClient,
	})
	feedHandler := feed.NewHandler(store, paginator, tracker, remote, sess, logger)

	r := router.NewRouter(logger)
	r.RegisterHealthRoutes(healthHandler)
	r.RegisterFeedRoutes(feedHandler)

	return &Application{
		Router:    r,
		Session:   sess,
		Store:     store,
		Paginator: paginator,
		Tracker:   tracker,
	}, nil
}
