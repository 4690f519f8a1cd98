package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/agent"
	"github.com/shorturl/offline-agent/internal/cache"
	"github.com/shorturl/offline-agent/internal/config"
	"github.com/shorturl/offline-agent/internal/logging"
	"github.com/shorturl/offline-agent/internal/proxy"
	"github.com/shorturl/offline-agent/internal/push"
	"github.com/shorturl/offline-agent/internal/server"
	"github.com/shorturl/offline-agent/internal/server/routes"
	"github.com/shorturl/offline-agent/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["origin"] = cfg.Global.Origin
		fields["storage"] = cfg.Global.StorageTarget()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 缓存存储 → agent → Fiber server。
	// agent 在后台安装/激活，激活前的请求全部直接透传到源站。
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化失败: %v\n", err)
		return 1
	}
	defer rt.store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := rt.agent.Start(ctx); err != nil {
			logger.WithError(err).WithFields(logging.LifecycleFields("start", rt.agent.Generation(), rt.agent.State().String())).
				Error("agent 启动失败，继续以透传模式运行")
		}
	}()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["origin"] = cfg.Global.Origin
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage"] = cfg.Global.StorageTarget()
	fields["generation"] = rt.agent.Generation()
	fields["push_enabled"] = cfg.Push.Enabled
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	go func() {
		<-ctx.Done()
		_ = rt.app.Shutdown()
	}()

	if err := startHTTPServer(rt.app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// appRuntime 聚合一次进程生命周期内共享的组件。
type appRuntime struct {
	store cache.Store
	agent *agent.Agent
	app   *fiber.App
}

// buildRuntime 按配置组装缓存存储、agent、推送分发器与 Fiber 应用，但不启动任何后台任务。
func buildRuntime(cfg *config.Config, logger *logrus.Logger) (*appRuntime, error) {
	store, err := cache.OpenStore(cfg.Global.StorageDriver, cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存存储失败: %w", err)
	}

	httpClient := server.NewUpstreamClient(cfg)
	fetcher, err := proxy.NewOriginFetcher(httpClient, cfg.Global.Origin)
	if err != nil {
		store.Close()
		return nil, err
	}

	a, err := agent.New(agent.Options{
		Generation:     version.CacheGeneration,
		Manifest:       agent.DefaultManifest(),
		Store:          store,
		Fetcher:        fetcher,
		Logger:         logger,
		MaxEntrySize:   cfg.Global.MaxEntrySize,
		MaxRetries:     cfg.Global.MaxRetries,
		InitialBackoff: cfg.Global.InitialBackoff.DurationValue(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	forwarder := proxy.NewForwarder(proxy.NewHandler(a, logger), logger)
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      forwarder,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	routes.RegisterStatusRoutes(app, a)

	if cfg.Push.Enabled {
		dispatcher, err := push.NewDispatcher(cfg.Global.Origin, push.NewCenter(cfg.Push.HistoryLimit), push.NewWindowRegistry(), logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		routes.RegisterPushRoutes(app, dispatcher)
	}

	return &appRuntime{store: store, agent: a, app: app}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("offline-agent", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 OFFLINE_AGENT_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("OFFLINE_AGENT_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
