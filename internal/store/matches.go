// 本文件用于匹配事件分析 统计命中率和高频条目

package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MatchEvent 对应一次已经落地的助手回复
type MatchEvent struct {
	SessionID string
	Query     string
	Pass      string
	ArticleID string
	Hits      int
	At        time.Time
}

type ArticleCount struct {
	ArticleID string `json:"articleId"`
	Count     int    `json:"count"`
}

type MatchStats struct {
	Total       int            `json:"total"`
	ByPass      map[string]int `json:"byPass"`
	HitRatio    float64        `json:"hitRatio"`
	TopArticles []ArticleCount `json:"topArticles"`
	Tickets     int            `json:"tickets"`
}

func (s *Store) RecordMatch(ctx context.Context, event MatchEvent) error {
	if err := s.ready(); err != nil {
		return err
	}
	query := strings.TrimSpace(event.Query)
	if query == "" {
		return fmt.Errorf("match query is required")
	}
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_events (session_id, query, pass, article_id, hits, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.SessionID, query, event.Pass, event.ArticleID, event.Hits, formatTime(at))
	if err != nil {
		return fmt.Errorf("insert match event failed: %w", err)
	}
	return nil
}

// MatchStats 汇总匹配事件 没有 article_id 的事件视为未命中
// 存储只有一条连接 每个查询的结果集必须在下一个查询前关闭
func (s *Store) MatchStats(ctx context.Context) (MatchStats, error) {
	if err := s.ready(); err != nil {
		return MatchStats{}, err
	}
	var stats MatchStats
	byPass, total, err := s.countByPass(ctx)
	if err != nil {
		return MatchStats{}, err
	}
	stats.ByPass = byPass
	stats.Total = total

	top, err := s.topArticles(ctx)
	if err != nil {
		return MatchStats{}, err
	}
	stats.TopArticles = top

	matched := 0
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM match_events WHERE article_id != ''`).Scan(&matched); err != nil {
		return MatchStats{}, fmt.Errorf("count matched events failed: %w", err)
	}
	if stats.Total > 0 {
		stats.HitRatio = float64(matched) / float64(stats.Total)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tickets`).Scan(&stats.Tickets); err != nil {
		return MatchStats{}, fmt.Errorf("count tickets failed: %w", err)
	}
	return stats, nil
}

func (s *Store) countByPass(ctx context.Context) (map[string]int, int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pass, COUNT(1) FROM match_events GROUP BY pass`)
	if err != nil {
		return nil, 0, fmt.Errorf("query match passes failed: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	total := 0
	for rows.Next() {
		var (
			pass  string
			count int
		)
		if err := rows.Scan(&pass, &count); err != nil {
			return nil, 0, err
		}
		out[pass] = count
		total += count
	}
	return out, total, rows.Err()
}

func (s *Store) topArticles(ctx context.Context) ([]ArticleCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT article_id, COUNT(1) AS c FROM match_events
		WHERE article_id != ''
		GROUP BY article_id ORDER BY c DESC, article_id ASC LIMIT ?
	`, topArticleLimit)
	if err != nil {
		return nil, fmt.Errorf("query top articles failed: %w", err)
	}
	defer rows.Close()
	out := []ArticleCount{}
	for rows.Next() {
		var item ArticleCount
		if err := rows.Scan(&item.ArticleID, &item.Count); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
