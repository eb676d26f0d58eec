// 本文件用于单个对话会话的状态机
//
// 文件职责：按提交顺序追加消息 并在模拟思考延迟后追加助手回复
// 关键路径：Idle --Submit--> AwaitingResponse --回复就绪--> Idle 等待期间拒绝新提交
// 边界与容错：会话关闭后挂起的回复直接丢弃 不会写入已经拆除的会话

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"carlos-assist/internal/match"
	"carlos-assist/internal/resolution"
)

type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting_response"
	StateClosed   State = "closed"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("session is waiting for a response")
	ErrClosed       = errors.New("session is closed")
	ErrNotFound     = errors.New("session not found")
)

// Message 只有助手消息会携带 Resolution
type Message struct {
	ID         string           `json:"id"`
	Role       string           `json:"role"`
	Text       string           `json:"text"`
	Resolution *resolution.View `json:"resolution,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// Notifier 在命中条目时通知其他面板展示同一处置
type Notifier interface {
	ResolutionMatched(sessionID string, view resolution.View)
}

type NotifierFunc func(sessionID string, view resolution.View)

func (f NotifierFunc) ResolutionMatched(sessionID string, view resolution.View) {
	f(sessionID, view)
}

// Observer 用于指标和匹配分析 回复真正落地后才会被调用
type Observer interface {
	ReplyReady(sessionID, query string, result match.Result, waited time.Duration)
}

type Options struct {
	Delay    time.Duration
	Notifier Notifier
	Observer Observer
	Clock    func() time.Time
}

type Snapshot struct {
	ID       string    `json:"id"`
	State    State     `json:"state"`
	Messages []Message `json:"messages"`
}

type Session struct {
	id        string
	responder *Responder
	opts      Options

	mu         sync.Mutex
	state      State
	messages   []Message
	lastActive time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(id string, responder *Responder, opts Options) *Session {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		responder:  responder,
		opts:       opts,
		state:      StateIdle,
		lastActive: opts.Clock(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Submit 追加用户消息并调度回复
// 返回的 channel 在回复落地或被丢弃时关闭
func (s *Session) Submit(text string) (<-chan struct{}, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrClosed
	case StateAwaiting:
		s.mu.Unlock()
		return nil, ErrBusy
	}
	now := s.opts.Clock()
	s.messages = append(s.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      trimmed,
		CreatedAt: now,
	})
	s.state = StateAwaiting
	s.lastActive = now
	done := make(chan struct{})
	s.wg.Add(1)
	s.mu.Unlock()

	go s.respond(trimmed, now, done)
	return done, nil
}

// respond 是与会话生命周期绑定的延迟任务
func (s *Session) respond(text string, submittedAt time.Time, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	if s.opts.Delay > 0 {
		timer := time.NewTimer(s.opts.Delay)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
	if s.ctx.Err() != nil {
		return
	}

	reply := s.responder.Respond(text)

	s.mu.Lock()
	if s.state != StateAwaiting {
		// 会话已关闭 丢弃迟到的回复
		s.mu.Unlock()
		return
	}
	now := s.opts.Clock()
	msg := Message{
		ID:         uuid.NewString(),
		Role:       RoleAssistant,
		Text:       reply.Text,
		Resolution: reply.Resolution,
		CreatedAt:  now,
	}
	s.messages = append(s.messages, msg)
	s.state = StateIdle
	s.lastActive = now
	s.mu.Unlock()

	if reply.Resolution != nil && s.opts.Notifier != nil {
		s.opts.Notifier.ResolutionMatched(s.id, *reply.Resolution)
	}
	if s.opts.Observer != nil {
		s.opts.Observer.ReplyReady(s.id, text, reply.Match, now.Sub(submittedAt))
	}
}

// Close 取消挂起任务并等待其退出 重复调用无副作用
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages 按对话顺序返回消息副本
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// LastAssistant 返回最近一条助手消息
func (s *Session) LastAssistant() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == RoleAssistant {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.id,
		State:    s.state,
		Messages: append([]Message{}, s.messages...),
	}
}

// Wait 阻塞到回复落地 ctx 结束时提前返回
func Wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
