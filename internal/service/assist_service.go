package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"carlos-assist/internal/config"
	"carlos-assist/internal/escalation"
	"carlos-assist/internal/kb"
	"carlos-assist/internal/logger"
	"carlos-assist/internal/match"
	"carlos-assist/internal/metrics"
	"carlos-assist/internal/models"
	"carlos-assist/internal/resolution"
	"carlos-assist/internal/session"
	"carlos-assist/internal/store"
	"carlos-assist/internal/sysinfo"
)

const minSweepInterval = time.Minute

var ErrArchiveDisabled = errors.New("ticket archive is disabled")

// AssistService 组合问答引擎的全部组件
/**
字段含义：
catalog：启动时加载一次的知识库目录 运行期只读
sessions：对话会话管理器 会话回复落地后回调本服务记录指标并打开处置面板
panels：按展示实例隔离进度的处置面板
builder + sink：升级工单的组装与交接 开启归档时先写 sqlite 成功后再记日志
archive：开启归档时的 sqlite 存储 关闭时为 nil
*/
type AssistService struct {
	config   *models.Config
	catalog  *kb.Catalog
	matcher  *match.Matcher
	options  resolution.Options
	sessions *session.Manager
	panels   *resolution.Panels
	builder  *escalation.Builder
	sink     escalation.Sink
	archive  *store.Store
	metrics  *metrics.Collector
	sysinfo  *sysinfo.Collector
	idleTTL  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options 允许测试注入独立的指标收集器
type Options struct {
	Metrics *metrics.Collector
}

// NewAssistService 构造并初始化 AssistService 的所有依赖
func NewAssistService(cfg *models.Config, catalog *kb.Catalog, opts Options) (*AssistService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if catalog == nil {
		return nil, fmt.Errorf("知识库目录不能为空")
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.Global()
	}

	svc := &AssistService{
		config:  cfg,
		catalog: catalog,
		matcher: match.NewMatcher(catalog),
		options: resolution.Options{StepLabels: cfg.StepLabels},
		panels:  resolution.NewPanels(),
		builder: escalation.NewBuilder(catalog),
		metrics: collector,
		sysinfo: sysinfo.NewCollector(sysinfo.Options{}),
		idleTTL: config.SessionIdleTTL(cfg),
	}

	if cfg.ArchiveEnabled() {
		archive, err := store.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("初始化工单归档失败: %w", err)
		}
		svc.archive = archive
	}
	svc.sink = ticketSinks(svc.archive)

	responder := session.NewResponder(svc.matcher, svc.options, catalog.Suggestions())
	svc.sessions = session.NewManager(responder, session.Options{
		Delay:    config.ThinkingDelay(cfg),
		Notifier: svc,
		Observer: svc,
	}, svc.idleTTL)

	collector.BindGauges(svc.sessions.Len, svc.panels.Len)
	return svc, nil
}

// ticketSinks 归档排在日志之前 归档失败时不会记下一条客户端没有拿到的工单
func ticketSinks(archive *store.Store) escalation.Chain {
	if archive == nil {
		return escalation.Chain{escalation.LogSink{}}
	}
	return escalation.Chain{archive, escalation.LogSink{}}
}

// Start 启动后台回收任务
func (s *AssistService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop(ctx)
	}()
	logger.Info("问答服务已启动 条目数=%d 归档=%v", s.catalog.Len(), s.archive != nil)
}

// Stop 关闭全部会话 挂起回复被丢弃 然后关闭存储
func (s *AssistService) Stop() error {
	logger.Info("停止问答服务...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	active := s.sessions.Len()
	s.sessions.CloseAll()
	s.metrics.AddSessionsClosed(active)
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			return fmt.Errorf("关闭工单归档失败: %w", err)
		}
	}
	logger.Info("问答服务已停止")
	return nil
}

// sweepLoop 周期回收空闲会话和面板 idleTTL 为 0 时不回收
func (s *AssistService) sweepLoop(ctx context.Context) {
	if s.idleTTL <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.idleTTL / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *AssistService) sweep() {
	if n := s.sessions.Sweep(); n > 0 {
		s.metrics.AddSessionsClosed(n)
		logger.Info("回收空闲会话: %d", n)
	}
	if n := s.panels.Sweep(s.idleTTL); n > 0 {
		logger.Debug("回收空闲处置面板: %d", n)
	}
}

func (s *AssistService) Config() *models.Config {
	return s.config
}

func (s *AssistService) Catalog() *kb.Catalog {
	return s.catalog
}

func (s *AssistService) ArchiveEnabled() bool {
	return s.archive != nil
}

// Match 执行一次无会话的匹配 命中时同时返回处置视图
func (s *AssistService) Match(query string) (match.Result, *resolution.View) {
	result := s.matcher.Match(query)
	if !result.Matched() {
		return result, nil
	}
	view := resolution.Adapt(*result.Article, s.options)
	return result, &view
}

func (s *AssistService) CreateSession() (*session.Session, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return nil, err
	}
	s.metrics.IncSessionOpened()
	return sess, nil
}

func (s *AssistService) Session(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// CloseSession 关闭会话并移除它打开的面板
func (s *AssistService) CloseSession(id string) error {
	if err := s.sessions.Close(id); err != nil {
		return err
	}
	s.metrics.AddSessionsClosed(1)
	for _, panel := range s.panels.BySource(id) {
		s.panels.Close(panel.ID)
	}
	return nil
}

// SessionPanels 返回会话命中后自动打开的面板
// OnSessionClosed 注册会话移除回调 显式关闭 空闲回收和停机都会触发
func (s *AssistService) OnSessionClosed(fn func(id string)) {
	s.sessions.OnClose(fn)
}

func (s *AssistService) SessionPanels(id string) []resolution.PanelState {
	panels := s.panels.BySource(id)
	out := make([]resolution.PanelState, 0, len(panels))
	for _, panel := range panels {
		out = append(out, panel.State())
	}
	return out
}

// OpenPanel 为指定条目打开新的展示实例
func (s *AssistService) OpenPanel(articleID, source string) (*resolution.Panel, error) {
	article, err := s.catalog.Get(articleID)
	if err != nil {
		return nil, err
	}
	panel := s.panels.Open(resolution.Adapt(article, s.options), source)
	s.metrics.IncPanelOpened()
	return panel, nil
}

func (s *AssistService) Panel(id string) (*resolution.Panel, error) {
	return s.panels.Get(id)
}

func (s *AssistService) ClosePanel(id string) bool {
	return s.panels.Close(id)
}

// ToggleStep 切换面板上某一步的完成状态
func (s *AssistService) ToggleStep(panelID string, index int) (resolution.Snapshot, error) {
	panel, err := s.panels.Get(panelID)
	if err != nil {
		return resolution.Snapshot{}, err
	}
	wasResolved := panel.Progress.IsFullyResolved()
	completed, err := panel.Progress.Toggle(index)
	if err != nil {
		return resolution.Snapshot{}, err
	}
	snap := panel.Progress.Snapshot()
	s.metrics.ObserveToggle(completed, snap.FullyResolved && !wasResolved)
	return snap, nil
}

// Escalate 基于面板当前进度生成工单并交给出口
func (s *AssistService) Escalate(ctx context.Context, panelID, description string, user escalation.UserContext) (escalation.Ticket, error) {
	panel, err := s.panels.Get(panelID)
	if err != nil {
		return escalation.Ticket{}, err
	}
	ticket, err := s.builder.Build(panel.View, panel.Progress.Snapshot(), description, user)
	if err != nil {
		s.metrics.ObserveEscalation("invalid")
		return escalation.Ticket{}, err
	}
	if err := s.sink.Submit(ctx, ticket); err != nil {
		s.metrics.ObserveEscalation("sink_error")
		return escalation.Ticket{}, fmt.Errorf("提交升级工单失败: %w", err)
	}
	s.metrics.ObserveEscalation("created")
	return ticket, nil
}

func (s *AssistService) Tickets(ctx context.Context, limit int) ([]store.TicketSummary, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.ListTickets(ctx, limit)
}

func (s *AssistService) Ticket(ctx context.Context, reference string) (escalation.Ticket, error) {
	if s.archive == nil {
		return escalation.Ticket{}, ErrArchiveDisabled
	}
	return s.archive.GetTicket(ctx, strings.TrimSpace(reference))
}

func (s *AssistService) Stats(ctx context.Context) (store.MatchStats, error) {
	if s.archive == nil {
		return store.MatchStats{}, ErrArchiveDisabled
	}
	return s.archive.MatchStats(ctx)
}

// HealthSnapshot 汇总健康检查需要的运行指标
func (s *AssistService) HealthSnapshot() models.HealthSnapshot {
	return models.HealthSnapshot{
		Articles:       s.catalog.Len(),
		ActiveSessions: s.sessions.Len(),
		OpenPanels:     s.panels.Len(),
		ArchiveEnabled: s.archive != nil,
		Process:        s.sysinfo.Process(),
	}
}

// ResolutionMatched 会话命中条目后为该会话打开一个面板
func (s *AssistService) ResolutionMatched(sessionID string, view resolution.View) {
	s.panels.Open(view, sessionID)
	s.metrics.IncPanelOpened()
}

// ReplyReady 记录匹配指标 归档开启时同时写入分析事件
func (s *AssistService) ReplyReady(sessionID, query string, result match.Result, waited time.Duration) {
	s.metrics.ObserveQuery(result.Pass, waited)
	articleID := ""
	if result.Article != nil {
		articleID = result.Article.ID
	}
	logger.GetLogger().Debug("助手回复已生成",
		zap.String("session", sessionID),
		zap.String("pass", result.Pass),
		zap.String("article", articleID),
		zap.Int("hits", result.Hits),
		zap.Duration("waited", waited),
	)
	if s.archive == nil {
		return
	}
	event := store.MatchEvent{
		SessionID: sessionID,
		Query:     query,
		Pass:      result.Pass,
		ArticleID: articleID,
		Hits:      result.Hits,
	}
	if err := s.archive.RecordMatch(context.Background(), event); err != nil {
		logger.Warn("记录匹配事件失败: %v", err)
	}
}
