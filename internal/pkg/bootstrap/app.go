// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/nacos"
	"orderdesk/internal/pkg/tracing"

	"golang.org/x/sync/errgroup"
)

// AppCtx 是注册路由和后台任务时可用的公共组件
type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未配置 Nacos 时为 nil
	Config *Config
}

// AppInfo 包含了启动服务所需的特定信息
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx)
	// Workers 与 HTTP 服务一起运行，任意一个返回错误都会触发整体关停
	Workers []func(ctx context.Context) error
	// OnShutdown 在 HTTP 服务关闭后按注册顺序执行
	OnShutdown []func(ctx context.Context)
}

// StartService 封装通用的启动和优雅关停流程，阻塞直到收到退出信号或某个 worker 失败
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Ctx(ctx)

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return err
	}

	var (
		nacosClient *nacos.Client
		ip          string
	)
	if cfg.Infra.Nacos.ServerAddrs != "" {
		nacosClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return err
		}
		if err := watchRemoteConfig(nacosClient, cfg); err != nil {
			log.Warn().Err(err).Msg("Remote config unavailable, keeping local config")
		}
		if ip, err = getOutboundIP(); err != nil {
			return err
		}
		if err := nacosClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: nacosClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	for _, w := range info.Workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// 先从注册中心摘除，再停止接收请求
		if nacosClient != nil {
			if err := nacosClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				log.Error().Err(err).Msg("Deregister from Nacos failed")
			}
			nacosClient.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		for _, fn := range info.OnShutdown {
			fn(shutdownCtx)
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer provider shutdown failed")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Str("service", info.ServiceName).Msg("Service stopped")
	return err
}

// watchRemoteConfig 拉取 Nacos 上的配置覆盖本地配置，并在变更时替换当前配置
func watchRemoteConfig(client *nacos.Client, base *Config) error {
	dataID := base.Infra.Nacos.DataID
	if dataID == "" {
		return nil
	}
	content, err := client.FetchConfig(dataID)
	if err != nil {
		return err
	}
	if content != "" {
		merged, err := Merge(base, []byte(content))
		if err != nil {
			return err
		}
		setCurrentConfig(merged)
	}
	return client.WatchConfig(dataID, func(content string) {
		merged, err := Merge(base, []byte(content))
		if err != nil {
			logger.Ctx(context.Background()).Error().Err(err).Str("dataId", dataID).Msg("Ignoring invalid remote config")
			return
		}
		setCurrentConfig(merged)
		logger.Ctx(context.Background()).Info().Str("dataId", dataID).Msg("Remote config reloaded")
	})
}

// getOutboundIP 通过一次 UDP "连接" 取得本机出口 IP，不会真正发包
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
