package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"HibiscusGuard/internal/api"
	"HibiscusGuard/internal/conn"
	"HibiscusGuard/internal/location"
	"HibiscusGuard/internal/mapsync"
	"HibiscusGuard/internal/models"
	"HibiscusGuard/internal/router"
	"HibiscusGuard/internal/store"
	"HibiscusGuard/pkg/cache"
	"HibiscusGuard/pkg/config"
	"HibiscusGuard/pkg/errors"
	"HibiscusGuard/pkg/logger"
	"HibiscusGuard/pkg/scheduler"
)

// Session 将实时同步引擎的各部件绑定到一次登录会话的生命周期。
// 连接句柄与定位订阅都是会话级单例：任何组件都可以读取派生
// 状态，但只有 Manager 能改连接状态，只有 Tracker 能改定位状态。
type Session struct {
	ID string

	cfg     *config.Config
	store   *store.Store
	tracker *location.Tracker
	manager *conn.Manager
	router  *router.Router
	rec     *mapsync.Reconciler
	client  *api.Client
	tokens  *TokenStore
	eta     *store.ETAEstimator
	cache   cache.Cache
	cron    *scheduler.Cron

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New 组装一个未启动的会话
func New(cfg *config.Config, sfc mapsync.Surface) (*Session, error) {
	tokens, err := OpenTokenStore(cfg.SessionDSN)
	if err != nil {
		return nil, err
	}

	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		tokens.Close()
		return nil, err
	}

	provider, err := location.NewProviderFromConfig(cfg)
	if err != nil {
		tokens.Close()
		c.Close()
		return nil, err
	}

	st := store.New()
	s := &Session{
		ID:      uuid.NewString(),
		cfg:     cfg,
		store:   st,
		tracker: location.NewTracker(provider),
		router:  router.New(),
		rec:     mapsync.NewReconciler(sfc),
		client:  api.NewClient(cfg.APIBaseURL, tokens),
		tokens:  tokens,
		eta:     store.NewETAEstimator(st, c, cfg.ResponderSpeedKmh, cfg.ETACacheTTL),
		cache:   c,
		cron:    scheduler.NewCron(nil),
	}

	s.registerHandlers()

	// 连接细节参数来自环境变量，退避参数由主配置接管
	wsCfg := conn.LoadConfigFromEnv()
	if cfg.ReconnectBaseDelay > 0 {
		wsCfg.BaseDelay = cfg.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxAttempts > 0 {
		wsCfg.MaxAttempts = cfg.ReconnectMaxAttempts
	}
	s.manager = conn.NewManager(wsCfg, s.onFrame)

	return s, nil
}

// onFrame 推送帧入口：连接读协程直接驱动路由器，保证顺序。
// 协议错误已由路由器丢弃并记录，不中断消息流。
func (s *Session) onFrame(frame []byte) {
	if err := s.router.HandleFrame(frame); err != nil && !errors.IsProtocol(err) {
		logger.Warn("push frame handling failed", zap.Error(err))
	}
}

// Store 暴露实体仓库的只读入口
func (s *Session) Store() *store.Store { return s.store }

// Tracker 暴露定位追踪器
func (s *Session) Tracker() *location.Tracker { return s.tracker }

// Connection 暴露连接管理器
func (s *Session) Connection() *conn.Manager { return s.manager }

// Reconciler 暴露标记对账器
func (s *Session) Reconciler() *mapsync.Reconciler { return s.rec }

// API 暴露REST协作方客户端
func (s *Session) API() *api.Client { return s.client }

// ETA 暴露到达时间估算器
func (s *Session) ETA() *store.ETAEstimator { return s.eta }

// Tokens 暴露会话凭证存储
func (s *Session) Tokens() *TokenStore { return s.tokens }

// Start 启动会话：先订阅变更流，再做批量种子拉取，
// 然后建立推送连接并启动轮询兜底与心跳任务。订阅必须
// 先于种子拉取，否则首批实体的变更信号无人接收。
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	storeCh, cancelStore := s.store.Watch()
	fixCh, cancelFix := s.tracker.Subscribe()

	s.seed(runCtx)

	s.wg.Add(1)
	go s.reconcileLoop(runCtx, storeCh, cancelStore, fixCh, cancelFix)

	token, err := s.tokens.Token()
	if err != nil {
		logger.Warn("no stored token, push channel stays down", zap.Error(err))
	} else if err := s.manager.Connect(s.cfg.WSEndpoint, token); err != nil {
		// 退避重连已在管理器内部调度
		if errors.IsConnection(err) {
			logger.Warn("initial push connect failed, backoff scheduled", zap.Error(err))
		} else {
			logger.Warn("initial push connect failed", zap.Error(err))
		}
	}

	// 轮询兜底：推送通道不可用时仍能跟上服务端状态
	_, err = s.cron.Every(s.cfg.PollInterval, func(context.Context) {
		s.seed(runCtx)
	})
	if err != nil {
		return err
	}
	_, err = s.cron.Every(s.cfg.HeartbeatInterval, func(context.Context) {
		s.heartbeat(runCtx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()

	logger.Info("session started", zap.String("session_id", s.ID))
	return nil
}

// seed 从REST协作方拉取全量并合并入仓库
func (s *Session) seed(ctx context.Context) {
	alerts, err := s.client.OpenAlerts(ctx)
	if err != nil {
		logger.Warn("seed alerts failed", zap.Error(err))
	} else {
		s.store.SeedAlerts(alerts)
	}

	responders, err := s.client.ActiveResponders(ctx)
	if err != nil {
		logger.Warn("seed responders failed", zap.Error(err))
	} else {
		s.store.SeedResponders(responders)
	}
}

// heartbeat 追踪激活时把当前定位上报给服务端
func (s *Session) heartbeat(ctx context.Context) {
	if s.tracker.State() != location.PermissionGrantedTracking {
		return
	}
	fix, ok := s.tracker.CurrentFix()
	if !ok {
		return
	}
	if err := s.client.Heartbeat(ctx, fix); err != nil {
		logger.Warn("heartbeat failed", zap.Error(err))
	}
}

// reconcileLoop 每个变更批次做一次标记对账：仓库批次信号与
// 定位更新各算一个批次，绝不按单个实体刷新。订阅在 Start
// 中先于种子拉取建立，种子批次的信号在此被消费。
func (s *Session) reconcileLoop(ctx context.Context, storeCh <-chan struct{}, cancelStore func(), fixCh <-chan models.Fix, cancelFix func()) {
	defer s.wg.Done()
	defer cancelStore()
	defer cancelFix()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-storeCh:
			if !ok {
				return
			}
		case _, ok := <-fixCh:
			if !ok {
				return
			}
		}
		s.reconcileOnce()
	}
}

// reconcileOnce 以当前实体集合与定位构建快照并对账
func (s *Session) reconcileOnce() {
	snap := mapsync.Snapshot{
		Alerts:     s.store.LiveAlerts(),
		Responders: s.store.Responders(),
	}
	if fix, ok := s.tracker.CurrentFix(); ok {
		snap.Self = &fix
	}
	s.rec.Reconcile(snap)
}

// Stop 结束会话并释放全部资源：推送连接、重连定时器、
// 定位订阅、周期任务、缓存与本地存储
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	started := s.started
	s.started = false
	s.mu.Unlock()

	if !started {
		return
	}

	s.cron.Stop()
	s.manager.Disconnect()
	s.tracker.Teardown()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.rec.Clear()
	s.cache.Close()
	if err := s.tokens.Close(); err != nil {
		logger.Warn("close session store failed", zap.Error(err))
	}
	logger.Info("session stopped", zap.String("session_id", s.ID))
}
