package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteRepository 把快照存进单个 sqlite 文件，SaveAll 在一个事务内完成。
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite 失败: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: 设置 journal_mode 失败: %v", ErrCorrupt, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: 初始化表结构失败: %v", ErrCorrupt, err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Load() (map[string]string, error) {
	rows, err := r.db.Query("SELECT id, content FROM snapshots")
	if err != nil {
		return nil, fmt.Errorf("%w: 查询快照失败: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("%w: 读取快照行失败: %v", ErrCorrupt, err)
		}
		out[id] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: 遍历快照失败: %v", ErrCorrupt, err)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveAll(snapshots map[string]string) error {
	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("清空快照失败: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO snapshots (id, content, updated_at) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("准备写入语句失败: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for id, content := range snapshots {
		if _, err := stmt.ExecContext(ctx, id, content, now); err != nil {
			return fmt.Errorf("写入快照 %s 失败: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交快照失败: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
