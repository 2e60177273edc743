package shared

import "testing"

func TestRunMigrations(t *testing.T) {
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM track_matches").Scan(&count); err != nil {
		t.Errorf("track_matches table missing: %v", err)
	}

	t.Run("idempotent", func(t *testing.T) {
		if err := RunMigrations(db); err != nil {
			t.Errorf("second RunMigrations() error = %v", err)
		}
	})

	t.Run("rollback drops the table", func(t *testing.T) {
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration() error = %v", err)
		}
		if err := db.QueryRow("SELECT COUNT(*) FROM track_matches").Scan(&count); err == nil {
			t.Error("track_matches still queryable after rollback")
		}
	})

	t.Run("rollback with nothing applied errors", func(t *testing.T) {
		if err := RollbackMigration(db); err == nil {
			t.Error("RollbackMigration() error = nil, want nothing to rollback")
		}
	})
}

func TestStripSQLComments(t *testing.T) {
	input := "-- header comment\nCREATE TABLE t (\n  id TEXT -- trailing\n)\n"
	want := "CREATE TABLE t (\nid TEXT\n)"
	if got := stripSQLComments(input); got != want {
		t.Errorf("stripSQLComments() = %q, want %q", got, want)
	}
}
