package database

import (
	"strings"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	src := `-- leading comment
CREATE TABLE a (
  id INT
);

CREATE TABLE b (id INT);
`
	got := SplitStatements(src)
	if len(got) != 2 {
		t.Fatalf("got %d statements: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a") || strings.HasSuffix(got[0], ";") {
		t.Fatalf("first statement = %q", got[0])
	}
	if got[1] != "CREATE TABLE b (id INT)" {
		t.Fatalf("second statement = %q", got[1])
	}
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	stmts := SplitStatements(string(raw))
	if len(stmts) != 3 {
		t.Fatalf("001_init.sql: got %d statements, want 3", len(stmts))
	}
	if !strings.Contains(stmts[2], "uq_reservations_active") {
		t.Fatal("reservations table lost its active uniqueness key")
	}
}

func TestDSN(t *testing.T) {
	got := DSN("app", "", "db", "3306", "events")
	want := "app@tcp(db:3306)/events?charset=utf8mb4&parseTime=true&loc=UTC"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	if got := DSN("app", "pw", "db", "3306", "events"); !strings.HasPrefix(got, "app:pw@tcp") {
		t.Fatalf("DSN with password = %q", got)
	}
}

func TestPending(t *testing.T) {
	names := []string{"002_images.sql", "001_init.sql", "003_stats.sql"}

	got := Pending(names, []string{"001_init.sql"})
	if len(got) != 2 || got[0] != "002_images.sql" || got[1] != "003_stats.sql" {
		t.Fatalf("Pending = %v", got)
	}
	if got := Pending(names, names); len(got) != 0 {
		t.Fatalf("all applied, still pending: %v", got)
	}
	if got := Pending(names, nil); len(got) != 3 || got[0] != "001_init.sql" {
		t.Fatalf("fresh database = %v", got)
	}
}
