package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/cache"
	"github.com/shorturl/offline-agent/internal/logging"
)

// State 是 agent 的生命周期状态。
type State int

const (
	StateUninstalled State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	default:
		return "uninstalled"
	}
}

// Options 描述构建 Agent 所需的依赖，全部在构造期注入。
type Options struct {
	Generation     string
	Manifest       []string
	Store          cache.Store
	Fetcher        Fetcher
	Logger         *logrus.Logger
	MaxEntrySize   int64
	MaxRetries     int
	InitialBackoff time.Duration
}

// Agent 串联安装、激活与请求拦截，只在 active 状态下介入请求。
type Agent struct {
	generation string
	manifest   []string
	store      cache.Store
	fetcher    Fetcher
	logger     *logrus.Logger

	installer *Installer
	reaper    *Reaper
	router    *Router

	maxRetries     int
	initialBackoff time.Duration

	mu    sync.RWMutex
	state State
}

// New 校验依赖并组装各组件。
func New(opts Options) (*Agent, error) {
	if opts.Generation == "" {
		return nil, errors.New("cache generation required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	manifest := opts.Manifest
	if len(manifest) == 0 {
		manifest = DefaultManifest()
	}
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}

	writer := bucketWriter{
		store:        opts.Store,
		generation:   opts.Generation,
		maxEntrySize: opts.MaxEntrySize,
		logger:       logger,
	}
	router := &Router{
		fetcher:    opts.Fetcher,
		navigation: &NavigationStrategy{writer: writer, fetcher: opts.Fetcher},
		asset:      &AssetStrategy{writer: writer, fetcher: opts.Fetcher},
	}
	return &Agent{
		generation:     opts.Generation,
		manifest:       append([]string(nil), manifest...),
		store:          opts.Store,
		fetcher:        opts.Fetcher,
		logger:         logger,
		installer:      &Installer{writer: writer, fetcher: opts.Fetcher, manifest: manifest},
		reaper:         &Reaper{store: opts.Store, generation: opts.Generation, logger: logger},
		router:         router,
		maxRetries:     opts.MaxRetries,
		initialBackoff: initial,
	}, nil
}

// Generation 返回当前缓存代名称。
func (a *Agent) Generation() string { return a.generation }

// Manifest 返回预缓存清单副本。
func (a *Agent) Manifest() []string { return append([]string(nil), a.manifest...) }

// Store 返回底层缓存存储，供诊断接口只读使用。
func (a *Agent) Store() cache.Store { return a.store }

// Router 返回请求路由器。
func (a *Agent) Router() *Router { return a.router }

// State 返回当前生命周期状态。
func (a *Agent) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) transition(from, to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, a.state)
	}
	a.state = to
	return nil
}

func (a *Agent) setState(to State) {
	a.mu.Lock()
	a.state = to
	a.mu.Unlock()
}

// Install 执行预缓存。仅允许在 uninstalled 状态调用，失败后回到 uninstalled。
func (a *Agent) Install(ctx context.Context) error {
	if err := a.transition(StateUninstalled, StateInstalling); err != nil {
		return err
	}
	a.logger.WithFields(logging.LifecycleFields("install", a.generation, StateInstalling.String())).Info("lifecycle_install_start")

	started := time.Now()
	count, err := a.installer.Install(ctx)
	if err != nil {
		a.setState(StateUninstalled)
		a.logger.WithError(err).WithFields(logging.LifecycleFields("install", a.generation, StateUninstalled.String())).Warn("lifecycle_install_failed")
		return err
	}

	a.setState(StateInstalled)
	fields := logging.LifecycleFields("install", a.generation, StateInstalled.String())
	fields["entries"] = count
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	a.logger.WithFields(fields).Info("lifecycle_install_complete")
	return nil
}

// Activate 清理旧缓存代并开始接管请求。仅允许在 installed 状态调用。
// 清理失败时保持 installed，调用方可重试。
func (a *Agent) Activate(ctx context.Context) error {
	if err := a.transition(StateInstalled, StateActivating); err != nil {
		return err
	}

	deleted, err := a.reaper.Reap(ctx)
	if err != nil {
		a.setState(StateInstalled)
		a.logger.WithError(err).WithFields(logging.LifecycleFields("activate", a.generation, StateInstalled.String())).Warn("lifecycle_activate_failed")
		return err
	}

	a.setState(StateActive)
	fields := logging.LifecycleFields("activate", a.generation, StateActive.String())
	fields["reaped"] = deleted
	a.logger.WithFields(fields).Info("lifecycle_active")
	return nil
}

// Start 带指数退避重试安装，成功后激活。ctx 取消时立即返回。
func (a *Agent) Start(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = a.initialBackoff
	policy.MaxInterval = 30 * a.initialBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := a.Install(ctx)
		if errors.Is(err, ErrInvalidTransition) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(a.maxRetries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			fields := logging.LifecycleFields("install_retry", a.generation, a.State().String())
			fields["wait_ms"] = wait.Milliseconds()
			a.logger.WithError(err).WithFields(fields).Warn("lifecycle_install_retry")
		}),
	)
	if err != nil {
		return fmt.Errorf("install %s: %w", a.generation, err)
	}
	return a.Activate(ctx)
}

// Intercept 是请求入口：active 之前全部透传，之后交给 Router。
func (a *Agent) Intercept(ctx context.Context, req *Request) (*Result, error) {
	if a.State() != StateActive {
		return a.router.passthrough(ctx, req)
	}
	return a.router.Serve(ctx, req)
}
