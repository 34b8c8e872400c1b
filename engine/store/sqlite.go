package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bilireel/engine"

	_ "modernc.org/sqlite"
)

// SQLite 每个任务一行，完整记录以 JSON 存在 record 列
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开数据库并建表
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// WAL 失败不影响使用
	_, _ = db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`)

	s := &SQLite{db: db}
	if err := s.initTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init table: %w", err)
	}
	return s, nil
}

func (s *SQLite) initTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT,
		status INTEGER NOT NULL,
		progress INTEGER NOT NULL,
		record TEXT NOT NULL,
		updated_time DATETIME
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLite) Put(ctx context.Context, rec engine.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	query := `
	INSERT INTO tasks (id, title, status, progress, record, updated_time)
	VALUES (?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		status = excluded.status,
		progress = excluded.progress,
		record = excluded.record,
		updated_time = excluded.updated_time`
	_, err = s.db.ExecContext(ctx, query, rec.ID, rec.Title, int(rec.Status), rec.Progress, string(data))
	return err
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (s *SQLite) Load(ctx context.Context) ([]engine.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []engine.TaskRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec engine.TaskRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
