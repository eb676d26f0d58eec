// 本文件用于根据当前处置状态组装升级工单
//
// 文件职责：把处置视图 进度快照 用户描述和外部用户上下文合并为一次性的工单载荷
// 关键路径：先校验描述 再按步骤顺序拼接尝试记录 最后用 validator 兜底校验整体结构
// 边界与容错：描述为空属于校验失败 返回 ErrEmptyDescription 而不是异常

package escalation

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"carlos-assist/internal/kb"
	"carlos-assist/internal/resolution"
)

var (
	ErrEmptyDescription   = errors.New("escalation description is required")
	ErrResolutionMismatch = errors.New("progress does not belong to resolution")
	ErrInvalidTicket      = errors.New("invalid escalation ticket")
)

const (
	referencePrefix   = "CAR-"
	referenceLength   = 8
	referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// ArticleSource 提供隐藏诊断元数据 *kb.Catalog 即满足该接口
type ArticleSource interface {
	Get(id string) (kb.Article, error)
}

// UserContext 由外部会话提供 引擎只做快照 不拥有这些数据
type UserContext struct {
	Name      string `json:"name" validate:"max=120"`
	Role      string `json:"role" validate:"max=60"`
	Company   string `json:"company" validate:"max=120"`
	FactoryID string `json:"factoryId,omitempty" validate:"max=64"`
	StyleID   string `json:"styleId,omitempty" validate:"max=64"`
}

type Issue struct {
	ResolutionID string `json:"resolutionId" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description" validate:"required"`
}

type StepAttempt struct {
	Action    string `json:"action" validate:"required"`
	Completed bool   `json:"completed"`
}

// Ticket 创建后不可修改
// Reference 只用于前端展示 不保证跨后端唯一 生产环境必须换成服务端签发的编号
type Ticket struct {
	Reference      string        `json:"reference" validate:"required"`
	User           UserContext   `json:"user"`
	Issue          Issue         `json:"issue"`
	StepsAttempted []StepAttempt `json:"stepsAttempted" validate:"min=1,dive"`
	DiagnosticTags []string      `json:"diagnosticTags"`
	Priority       string        `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	Timestamp      time.Time     `json:"timestamp" validate:"required"`
}

// CompletedSteps 统计已完成步骤数
func (t Ticket) CompletedSteps() int {
	done := 0
	for _, step := range t.StepsAttempted {
		if step.Completed {
			done++
		}
	}
	return done
}

type Builder struct {
	articles  ArticleSource
	validate  *validator.Validate
	now       func() time.Time
	reference func() (string, error)
}

// NewBuilder 创建工单构建器 articles 可以为空 此时工单不带诊断标签
func NewBuilder(articles ArticleSource) *Builder {
	return &Builder{
		articles:  articles,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       func() time.Time { return time.Now().UTC() },
		reference: NewReference,
	}
}

// Build 组装工单载荷 投递不在这里处理
func (b *Builder) Build(view resolution.View, progress resolution.Snapshot, description string, user UserContext) (Ticket, error) {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return Ticket{}, ErrEmptyDescription
	}
	if progress.ResolutionID != "" && progress.ResolutionID != view.ID {
		return Ticket{}, fmt.Errorf("%w: progress=%s resolution=%s", ErrResolutionMismatch, progress.ResolutionID, view.ID)
	}
	if progress.StepCount != 0 && progress.StepCount != len(view.Steps) {
		return Ticket{}, fmt.Errorf("%w: progress tracks %d steps, resolution has %d", ErrResolutionMismatch, progress.StepCount, len(view.Steps))
	}

	steps := make([]StepAttempt, 0, len(view.Steps))
	for i, step := range view.Steps {
		steps = append(steps, StepAttempt{
			Action:    step.Action,
			Completed: progress.IsCompleted(i),
		})
	}

	var diagnosticTags []string
	priority := ""
	if b.articles != nil {
		if article, err := b.articles.Get(view.ID); err == nil {
			diagnosticTags = append(diagnosticTags, article.Diagnostics.RootCauseTags...)
			priority = article.Diagnostics.Priority
		}
	}
	if diagnosticTags == nil {
		diagnosticTags = []string{}
	}

	reference, err := b.reference()
	if err != nil {
		return Ticket{}, fmt.Errorf("generate reference failed: %w", err)
	}

	ticket := Ticket{
		Reference: reference,
		User:      trimUser(user),
		Issue: Issue{
			ResolutionID: view.ID,
			Title:        view.Title,
			Description:  desc,
		},
		StepsAttempted: steps,
		DiagnosticTags: diagnosticTags,
		Priority:       priority,
		Timestamp:      b.now(),
	}
	if err := b.validate.Struct(ticket); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	return ticket, nil
}

// NewReference 生成客户端展示用的随机编号
func NewReference() (string, error) {
	limit := big.NewInt(int64(len(referenceAlphabet)))
	buf := make([]byte, referenceLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = referenceAlphabet[n.Int64()]
	}
	return referencePrefix + string(buf), nil
}

func trimUser(user UserContext) UserContext {
	return UserContext{
		Name:      strings.TrimSpace(user.Name),
		Role:      strings.TrimSpace(user.Role),
		Company:   strings.TrimSpace(user.Company),
		FactoryID: strings.TrimSpace(user.FactoryID),
		StyleID:   strings.TrimSpace(user.StyleID),
	}
}
