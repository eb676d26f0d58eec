// 本文件用于升级工单归档 工单写入后只读

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"carlos-assist/internal/escalation"
)

// TicketSummary 是列表展示用的精简形态
type TicketSummary struct {
	Reference      string `json:"reference"`
	ResolutionID   string `json:"resolutionId"`
	Title          string `json:"title"`
	Priority       string `json:"priority,omitempty"`
	StepsTotal     int    `json:"stepsTotal"`
	StepsCompleted int    `json:"stepsCompleted"`
	CreatedAt      string `json:"createdAt"`
}

// Submit 让 Store 可以直接作为 escalation.Sink 使用
func (s *Store) Submit(ctx context.Context, ticket escalation.Ticket) error {
	return s.SaveTicket(ctx, ticket)
}

// SaveTicket 在同一事务内写入工单主表 步骤和诊断标签
// 任一子步骤失败都会回滚 不会留下半条工单
func (s *Store) SaveTicket(ctx context.Context, ticket escalation.Ticket) error {
	if err := s.ready(); err != nil {
		return err
	}
	ref := strings.TrimSpace(ticket.Reference)
	if ref == "" {
		return fmt.Errorf("ticket reference is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollbackTx(tx)

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tickets WHERE reference = ?`, ref).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check ticket failed: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: ticket %s", ErrDuplicate, ref)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (
			reference, resolution_id, title, description, priority,
			user_name, user_role, company, factory_id, style_id,
			steps_total, steps_completed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ref, ticket.Issue.ResolutionID, ticket.Issue.Title, ticket.Issue.Description, ticket.Priority,
		ticket.User.Name, ticket.User.Role, ticket.User.Company, ticket.User.FactoryID, ticket.User.StyleID,
		len(ticket.StepsAttempted), ticket.CompletedSteps(), formatTime(ticket.Timestamp))
	if err != nil {
		return fmt.Errorf("insert ticket failed: %w", err)
	}

	for i, step := range ticket.StepsAttempted {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ticket_steps (reference, position, action, completed) VALUES (?, ?, ?, ?)
		`, ref, i, step.Action, boolToInt(step.Completed))
		if err != nil {
			return fmt.Errorf("insert ticket step failed: %w", err)
		}
	}
	for _, tag := range ticket.DiagnosticTags {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO ticket_tags (reference, tag) VALUES (?, ?)
		`, ref, tag)
		if err != nil {
			return fmt.Errorf("insert ticket tag failed: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetTicket(ctx context.Context, reference string) (escalation.Ticket, error) {
	if err := s.ready(); err != nil {
		return escalation.Ticket{}, err
	}
	return queryTicket(ctx, s.db, strings.TrimSpace(reference))
}

func queryTicket(ctx context.Context, q queryer, ref string) (escalation.Ticket, error) {
	var (
		ticket    escalation.Ticket
		createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT reference, resolution_id, title, description, priority,
			user_name, user_role, company, factory_id, style_id, created_at
		FROM tickets WHERE reference = ?
	`, ref).Scan(
		&ticket.Reference, &ticket.Issue.ResolutionID, &ticket.Issue.Title, &ticket.Issue.Description, &ticket.Priority,
		&ticket.User.Name, &ticket.User.Role, &ticket.User.Company, &ticket.User.FactoryID, &ticket.User.StyleID, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return escalation.Ticket{}, fmt.Errorf("%w: ticket %s", ErrNotFound, ref)
	}
	if err != nil {
		return escalation.Ticket{}, fmt.Errorf("query ticket failed: %w", err)
	}
	ticket.Timestamp = parseTime(createdAt)

	steps, err := queryTicketSteps(ctx, q, ref)
	if err != nil {
		return escalation.Ticket{}, err
	}
	ticket.StepsAttempted = steps
	tags, err := queryTicketTags(ctx, q, ref)
	if err != nil {
		return escalation.Ticket{}, err
	}
	ticket.DiagnosticTags = tags
	return ticket, nil
}

func queryTicketSteps(ctx context.Context, q queryer, ref string) ([]escalation.StepAttempt, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT action, completed FROM ticket_steps WHERE reference = ? ORDER BY position ASC
	`, ref)
	if err != nil {
		return nil, fmt.Errorf("query ticket steps failed: %w", err)
	}
	defer rows.Close()
	steps := make([]escalation.StepAttempt, 0)
	for rows.Next() {
		var (
			step      escalation.StepAttempt
			completed int
		)
		if err := rows.Scan(&step.Action, &completed); err != nil {
			return nil, err
		}
		step.Completed = completed == 1
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func queryTicketTags(ctx context.Context, q queryer, ref string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tag FROM ticket_tags WHERE reference = ? ORDER BY rowid ASC
	`, ref)
	if err != nil {
		return nil, fmt.Errorf("query ticket tags failed: %w", err)
	}
	defer rows.Close()
	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ListTickets 按创建时间倒序返回最近的工单
func (s *Store) ListTickets(ctx context.Context, limit int) ([]TicketSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT reference, resolution_id, title, priority, steps_total, steps_completed, created_at
		FROM tickets ORDER BY created_at DESC, reference ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tickets failed: %w", err)
	}
	defer rows.Close()
	out := make([]TicketSummary, 0)
	for rows.Next() {
		var item TicketSummary
		if err := rows.Scan(&item.Reference, &item.ResolutionID, &item.Title, &item.Priority,
			&item.StepsTotal, &item.StepsCompleted, &item.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
