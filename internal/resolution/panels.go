// 本文件用于按展示实例管理处置面板 同一条目可以同时存在多个互不影响的面板

package resolution

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrPanelNotFound = errors.New("resolution panel not found")

// Panel 是一个展示实例 进度按面板 ID 隔离而不是按条目 ID
type Panel struct {
	ID        string
	Source    string
	View      View
	Progress  *Progress
	CreatedAt time.Time

	touchedAt time.Time
}

// PanelState 是面板对外输出的结构
type PanelState struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	View      View      `json:"resolution"`
	Progress  Snapshot  `json:"progress"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *Panel) State() PanelState {
	return PanelState{
		ID:        p.ID,
		Source:    p.Source,
		View:      p.View,
		Progress:  p.Progress.Snapshot(),
		CreatedAt: p.CreatedAt,
	}
}

type Panels struct {
	mu    sync.Mutex
	items map[string]*Panel
	now   func() time.Time
}

func NewPanels() *Panels {
	return &Panels{
		items: make(map[string]*Panel),
		now:   time.Now,
	}
}

// Open 为视图创建新的展示实例 每次调用都得到独立进度
func (p *Panels) Open(view View, source string) *Panel {
	now := p.now()
	id := uuid.NewString()
	panel := &Panel{
		ID:        id,
		Source:    strings.TrimSpace(source),
		View:      view,
		Progress:  NewProgress(id, view),
		CreatedAt: now,
		touchedAt: now,
	}
	p.mu.Lock()
	p.items[id] = panel
	p.mu.Unlock()
	return panel
}

func (p *Panels) Get(id string) (*Panel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	panel, ok := p.items[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrPanelNotFound
	}
	panel.touchedAt = p.now()
	return panel, nil
}

// BySource 返回某个来源打开的面板 按创建时间升序
func (p *Panels) BySource(source string) []*Panel {
	key := strings.TrimSpace(source)
	p.mu.Lock()
	out := make([]*Panel, 0, 2)
	for _, panel := range p.items {
		if panel.Source == key {
			out = append(out, panel)
		}
	}
	p.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (p *Panels) Close(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.TrimSpace(id)
	if _, ok := p.items[key]; !ok {
		return false
	}
	delete(p.items, key)
	return true
}

// Sweep 清理超过 idle 未被访问的面板 返回清理数量
func (p *Panels) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := p.now().Add(-idle)
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for id, panel := range p.items {
		if panel.touchedAt.Before(cutoff) {
			delete(p.items, id)
			removed++
		}
	}
	return removed
}

func (p *Panels) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
