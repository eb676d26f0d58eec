// 本文件用于单个展示实例的处置进度跟踪

package resolution

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrStepOutOfRange = errors.New("step index out of range")

// Progress 记录某个展示实例上用户勾选完成的步骤
// 只有 Toggle 会修改状态 连续切换两次回到原状态
type Progress struct {
	mu           sync.RWMutex
	panelID      string
	resolutionID string
	stepCount    int
	completed    map[int]struct{}
}

// Snapshot 是进度的只读副本 供升级工单等下游使用
type Snapshot struct {
	PanelID       string `json:"panelId"`
	ResolutionID  string `json:"resolutionId"`
	StepCount     int    `json:"stepCount"`
	Completed     []int  `json:"completed"`
	FullyResolved bool   `json:"fullyResolved"`
}

func NewProgress(panelID string, view View) *Progress {
	return &Progress{
		panelID:      panelID,
		resolutionID: view.ID,
		stepCount:    len(view.Steps),
		completed:    make(map[int]struct{}, len(view.Steps)),
	}
}

// Toggle 切换步骤完成状态并返回切换后的状态
func (p *Progress) Toggle(index int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= p.stepCount {
		return false, fmt.Errorf("%w: %d not in [0,%d)", ErrStepOutOfRange, index, p.stepCount)
	}
	if _, ok := p.completed[index]; ok {
		delete(p.completed, index)
		return false, nil
	}
	p.completed[index] = struct{}{}
	return true, nil
}

func (p *Progress) IsCompleted(index int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.completed[index]
	return ok
}

func (p *Progress) IsFullyResolved() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.completed) == p.stepCount
}

// Completed 返回升序排列的已完成步骤下标
func (p *Progress) Completed() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.completedLocked()
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		PanelID:       p.panelID,
		ResolutionID:  p.resolutionID,
		StepCount:     p.stepCount,
		Completed:     p.completedLocked(),
		FullyResolved: len(p.completed) == p.stepCount,
	}
}

func (p *Progress) completedLocked() []int {
	out := make([]int, 0, len(p.completed))
	for idx := range p.completed {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (s Snapshot) IsCompleted(index int) bool {
	for _, idx := range s.Completed {
		if idx == index {
			return true
		}
	}
	return false
}
