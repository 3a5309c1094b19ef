package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_tasks",
		SQL: `CREATE TABLE IF NOT EXISTS tasks (
  id            TEXT        PRIMARY KEY,
  original_name TEXT        NOT NULL,
  file_key      TEXT        NOT NULL,
  file_type     TEXT        NOT NULL,
  file_size     BIGINT      NOT NULL DEFAULT 0 CHECK (file_size >= 0),
  status        TEXT        NOT NULL DEFAULT 'uploaded'
                            CHECK (status IN ('uploaded','processing','completed','failed')),
  progress      INT         NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
  total_pages   INT         NOT NULL DEFAULT 0 CHECK (total_pages >= 0),
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  completed_at  TIMESTAMPTZ,
  error_message TEXT
);`,
	},
	{
		Name: "create_table_pages",
		SQL: `CREATE TABLE IF NOT EXISTS pages (
  id            BIGSERIAL   PRIMARY KEY,
  task_id       TEXT        NOT NULL REFERENCES tasks (id) ON DELETE CASCADE,
  page_number   INT         NOT NULL CHECK (page_number >= 1),
  image_url     TEXT        NOT NULL,
  thumbnail_url TEXT,
  width         INT,
  height        INT,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (task_id, page_number)
);`,
	},
	{
		Name: "create_index_tasks_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);`,
	},
	{
		Name: "create_index_tasks_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks (created_at);`,
	},
	{
		Name: "create_index_pages_task_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_pages_task_id ON pages (task_id);`,
	},
}

// EnsureMigrated checks if the 'tasks' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.tasks') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
