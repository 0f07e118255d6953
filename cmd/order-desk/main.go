// cmd/order-desk/main.go
package main

import (
	"context"
	"log"
	"time"

	"orderdesk/internal/pkg/bootstrap"
	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/mq"
	"orderdesk/internal/pkg/redis"
	"orderdesk/internal/pkg/zookeeper"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain/port"
	"orderdesk/internal/service/order/infrastructure"
	"orderdesk/internal/service/order/infrastructure/adapter"
	"orderdesk/internal/service/order/interfaces"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// main 是组装根：创建并组装所有依赖，然后启动服务
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.App.ServiceName, cfg.App.LogLevel)
	ctx := context.Background()
	lg := logger.Ctx(ctx)

	// 1. 存储与配置
	db, err := infrastructure.NewMySQLDB(cfg.Infra.MySQL)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to connect to MySQL")
	}
	repo := infrastructure.NewGormOrderRepository(db)

	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	configStore, err := adapter.NewBranchConfigRedisStore(redisClient)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to load branch config script")
	}
	guards, err := adapter.NewCELGuardCompiler()
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to build guard compiler")
	}
	configs := application.NewBranchConfigProvider(configStore, guards, cfg.App.RequestTimeout)

	// 配置缺失不阻止启动，首次需要时再加载
	loc := time.UTC
	if branch, err := configs.Refresh(ctx, cfg.App.BranchID); err != nil {
		lg.Warn().Err(err).Str("branch_id", cfg.App.BranchID).Msg("Branch config not loaded at startup")
	} else {
		loc = branch.Location()
	}

	// 2. 订单锁
	var locker port.OrderLocker = application.NewKeyedLocker()
	if cfg.App.DistributedLock {
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			lg.Fatal().Err(err).Msg("Failed to connect to ZooKeeper")
		}
		defer zkConn.Close()
		locker = adapter.NewZKOrderLocker(zkConn, cfg.Infra.Zookeeper.LockRoot, locker)
	}

	// 3. 消息通道
	kcfg := cfg.Infra.Kafka
	eventWriter := mq.NewKafkaWriter(kcfg.Brokers, kcfg.EventsTopic)
	receiptWriter := mq.NewKafkaWriter(kcfg.Brokers, kcfg.ReceiptsTopic)
	dltWriter := mq.NewKafkaWriter(kcfg.Brokers, kcfg.DLTTopic)
	publisher := adapter.NewOrderEventKafkaPublisher(eventWriter)
	sink := adapter.NewReceiptKafkaSink(receiptWriter)

	// 每个实例都要看到全部事件，消费组按实例区分
	groupID := kcfg.GroupID + "-" + uuid.NewString()[:8]
	eventReader := mq.NewKafkaReader(kcfg.Brokers, kcfg.EventsTopic, groupID)
	dltReader := mq.NewKafkaReader(kcfg.Brokers, kcfg.DLTTopic, kcfg.GroupID+"-dlt")

	// 4. 应用层
	tracer := otel.Tracer(cfg.App.ServiceName)
	today := time.Now().In(loc)
	reconciler := application.NewLiveSyncReconciler(today, loc)
	receipts := application.NewReceiptTrigger(configs, sink, tracer, cfg.App.RequestTimeout)
	service := application.NewOrderApplicationService(application.Dependencies{
		BranchID:   cfg.App.BranchID,
		Repo:       repo,
		Publisher:  publisher,
		Configs:    configs,
		Reconciler: reconciler,
		Receipts:   receipts,
		Locker:     locker,
		Tracer:     tracer,
		Timeout:    cfg.App.RequestTimeout,
	})
	if _, err := service.SelectDay(ctx, today); err != nil {
		lg.Warn().Err(err).Msg("Initial day load failed, starting with an empty view")
	}

	// 5. 接口层
	hub := interfaces.NewHub(reconciler.View)
	reconciler.Subscribe(hub.OnChange)
	reconciler.SubscribeReset(hub.OnReset)
	consumer := interfaces.NewOrderEventConsumer(eventReader, reconciler, mq.NewFailureHandler(dltWriter))
	dltConsumer := interfaces.NewDltConsumer(dltReader)
	poller := application.NewLiveCounterPoller(reconciler, cfg.App.LiveCounterInterval)
	handler := interfaces.NewOrderHandler(service, hub, configStore, cfg.App.BranchID)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.ServiceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Workers: []func(ctx context.Context) error{
			consumer.Run,
			dltConsumer.Run,
			poller.Run,
			func(ctx context.Context) error {
				return configs.RunRefresher(ctx, cfg.App.BranchID, cfg.App.ConfigRefreshInterval)
			},
			func(ctx context.Context) error {
				return configStore.Watch(ctx, func(branchID string) {
					if branchID != cfg.App.BranchID {
						return
					}
					if _, err := configs.Refresh(ctx, branchID); err != nil {
						logger.Ctx(ctx).Error().Err(err).Msg("Reload branch config failed")
					}
				})
			},
		},
		OnShutdown: []func(ctx context.Context){
			func(context.Context) { hub.Close() },
			func(ctx context.Context) {
				for name, closeFn := range map[string]func() error{
					"events":   publisher.Close,
					"receipts": sink.Close,
					"dlt":      dltWriter.Close,
					"redis":    redisClient.Close,
				} {
					if err := closeFn(); err != nil {
						logger.Ctx(ctx).Error().Err(err).Str("resource", name).Msg("Close failed")
					}
				}
			},
		},
	})
	if err != nil {
		lg.Fatal().Err(err).Msg("Service exited with error")
	}
}
