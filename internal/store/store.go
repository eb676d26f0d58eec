// 本文件用于本地 sqlite 存储 保存升级工单归档和匹配分析事件

// 文件职责：统一管理数据库初始化 迁移 以及工单与匹配事件的读写
// 关键路径：工单主表 步骤表和标签表必须在同一事务内提交
// 边界与容错：存储只做归档与统计 不参与会话和处置的实时状态

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultDataDir   = "data"
	dbFileName       = "assist.db"
	defaultListLimit = 20
	maxListLimit     = 200
	topArticleLimit  = 5
	// 其他进程 例如 kb-eval archive 持有写锁时最多等待的毫秒数
	busyTimeoutMillis = 5000
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrNotReady  = errors.New("store not ready")
)

type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore 统一负责存储初始化
// 目录创建 打开数据库 设置 WAL 和迁移都收敛在这里 返回时已经可读写
func NewStore(dataDir string) (*Store, error) {
	root := strings.TrimSpace(dataDir)
	if root == "" {
		root = defaultDataDir
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir failed: %w", err)
	}
	dbPath := filepath.Join(root, dbFileName)
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=busy_timeout(%d)", dbPath, busyTimeoutMillis))
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	// sqlite 同一时刻只允许一个写者 进程内所有读写共用一条连接排队
	// 工单提交和回复协程的匹配事件会并发写入 多连接时会直接得到 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite wal failed: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DBPath() string {
	if s == nil {
		return ""
	}
	return s.dbPath
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrNotReady
	}
	return nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
			reference TEXT PRIMARY KEY,
			resolution_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT '',
			user_name TEXT NOT NULL DEFAULT '',
			user_role TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			factory_id TEXT NOT NULL DEFAULT '',
			style_id TEXT NOT NULL DEFAULT '',
			steps_total INTEGER NOT NULL DEFAULT 0,
			steps_completed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticket_steps (
			reference TEXT NOT NULL,
			position INTEGER NOT NULL,
			action TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			UNIQUE(reference, position)
		);`,
		`CREATE TABLE IF NOT EXISTS ticket_tags (
			reference TEXT NOT NULL,
			tag TEXT NOT NULL,
			UNIQUE(reference, tag)
		);`,
		`CREATE TABLE IF NOT EXISTS match_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL DEFAULT '',
			query TEXT NOT NULL,
			pass TEXT NOT NULL,
			article_id TEXT NOT NULL DEFAULT '',
			hits INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_created ON tickets(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_pass ON match_events(pass);`,
		`CREATE INDEX IF NOT EXISTS idx_match_events_article ON match_events(article_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store migrate failed: %w", err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func rollbackTx(tx *sql.Tx) {
	if tx != nil {
		_ = tx.Rollback()
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
