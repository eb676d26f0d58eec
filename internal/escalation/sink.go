// 本文件用于工单交接出口 真实工单系统的投递不在本服务范围内

package escalation

import (
	"context"
	"fmt"

	"carlos-assist/internal/logger"
)

// Sink 接收已经组装好的工单
type Sink interface {
	Submit(ctx context.Context, ticket Ticket) error
}

type SinkFunc func(ctx context.Context, ticket Ticket) error

func (f SinkFunc) Submit(ctx context.Context, ticket Ticket) error {
	return f(ctx, ticket)
}

// LogSink 只记录日志 对应原型中的工单交接行为
type LogSink struct{}

func (LogSink) Submit(_ context.Context, ticket Ticket) error {
	logger.Info("升级工单已生成 ref=%s resolution=%s steps=%d/%d user=%s company=%s",
		ticket.Reference,
		ticket.Issue.ResolutionID,
		ticket.CompletedSteps(),
		len(ticket.StepsAttempted),
		ticket.User.Name,
		ticket.User.Company,
	)
	return nil
}

// Chain 按顺序交给每个出口 任一出口失败立即返回
// 排在后面的出口只会看到前面出口都已接收的工单
type Chain []Sink

func (c Chain) Submit(ctx context.Context, ticket Ticket) error {
	for i, sink := range c {
		if sink == nil {
			continue
		}
		if err := sink.Submit(ctx, ticket); err != nil {
			return fmt.Errorf("ticket sink #%d: %w", i+1, err)
		}
	}
	return nil
}
