package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	h, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	h := openTemp(t)
	if err := ensureSchema(context.Background(), h, DriverSQLite); err != nil {
		t.Fatalf("second ensureSchema: %v", err)
	}
	for _, table := range []string{"courses", "units", "lessons", "question_banks", "questions", "enrollments",
		"unit_progress", "lesson_progress", "quiz_attempts", "quiz_answers", "event_log"} {
		var n int
		if err := h.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := WithTx(ctx, h, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO courses (id,title,created_at) VALUES ($1,$2,$3)`, "c1", "Course", 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	var n int
	_ = h.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&n)
	if n != 0 {
		t.Fatalf("rollback did not happen, rows=%d", n)
	}

	if err := WithTx(ctx, h, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO courses (id,title,created_at) VALUES ($1,$2,$3)`, "c1", "Course", 1)
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_, err = h.Exec(`INSERT INTO courses (id,title,created_at) VALUES ($1,$2,$3)`, "c1", "Again", 2)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestUnixRoundTrip(t *testing.T) {
	if Time(Unix(nil)) != nil {
		t.Fatalf("nil should stay nil")
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := Time(Unix(&now))
	if got == nil || !got.Equal(now) {
		t.Fatalf("got %v", got)
	}
}
