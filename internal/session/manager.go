// 本文件用于管理全部活跃会话 负责创建 查找 关闭与空闲回收

package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type Manager struct {
	responder *Responder
	opts      Options
	idleTTL   time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	onClose  []func(id string)
}

func NewManager(responder *Responder, opts Options, idleTTL time.Duration) *Manager {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{
		responder: responder,
		opts:      opts,
		idleTTL:   idleTTL,
		sessions:  make(map[string]*Session),
	}
}

// Create 新建会话 管理器关闭后返回 ErrClosed
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	s := New("", m.responder, m.opts)
	m.sessions[s.ID()] = s
	return s, nil
}

// OnClose 注册会话移除回调 Close Sweep CloseAll 移除的会话都会触发
// 回调在会话关闭之后执行 不持有管理器锁
func (m *Manager) OnClose(fn func(id string)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.onClose = append(m.onClose, fn)
	m.mu.Unlock()
}

func (m *Manager) notifyClosed(ids ...string) {
	m.mu.Lock()
	hooks := append([]func(string){}, m.onClose...)
	m.mu.Unlock()
	for _, id := range ids {
		for _, fn := range hooks {
			fn(id)
		}
	}
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Close 移除并关闭会话 挂起的回复会被丢弃
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[strings.TrimSpace(id)]
	if ok {
		delete(m.sessions, s.ID())
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	m.notifyClosed(s.ID())
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs 返回排序后的会话 ID 便于展示
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sweep 关闭空闲超过 idleTTL 的会话 返回关闭数量
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.opts.Clock().Add(-m.idleTTL)
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		s.Close()
		ids = append(ids, s.ID())
	}
	m.notifyClosed(ids...)
	return len(stale)
}

// CloseAll 在进程退出时调用 之后不再接受新会话
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	ids := make([]string, 0, len(all))
	for _, s := range all {
		s.Close()
		ids = append(ids, s.ID())
	}
	m.notifyClosed(ids...)
}
