package repositories

import (
	"strings"
	"testing"
	"time"
)

func TestDialectRebind(t *testing.T) {
	q := `UPDATE sales SET status = ?, protocol = ? WHERE uid = ?`

	if got := DialectPostgres.rebind(q); got != `UPDATE sales SET status = $1, protocol = $2 WHERE uid = $3` {
		t.Fatalf("unexpected postgres query: %s", got)
	}
	if got := DialectMySQL.rebind(q); got != q {
		t.Fatalf("mysql query must be untouched, got %s", got)
	}
}

func TestDialectFor(t *testing.T) {
	cases := map[string]Dialect{"pgx": DialectPostgres, "": DialectPostgres, "Postgres": DialectPostgres, "mysql": DialectMySQL}
	for driver, want := range cases {
		got, err := DialectFor(driver)
		if err != nil {
			t.Fatalf("DialectFor(%q): %v", driver, err)
		}
		if got != want {
			t.Errorf("DialectFor(%q) = %v, want %v", driver, got, want)
		}
	}
	if _, err := DialectFor("sqlite3"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestTruncateMessage(t *testing.T) {
	if truncateMessage(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	long := strings.Repeat("é", errorMessageMaxLen+10)
	got := truncateMessage(&long)
	if n := len([]rune(*got)); n != errorMessageMaxLen {
		t.Fatalf("expected %d runes, got %d", errorMessageMaxLen, n)
	}
	short := "boom"
	if *truncateMessage(&short) != "boom" {
		t.Fatal("short message changed")
	}
}

func TestDBTimeKeepsInstant(t *testing.T) {
	saoPaulo := time.FixedZone("America/Sao_Paulo", -3*60*60)
	local := time.Date(2026, 10, 16, 19, 26, 37, 0, saoPaulo)

	got := dbTime(local)
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	if !got.Equal(local) {
		t.Fatalf("instant changed: %v -> %v", local, got)
	}
	if got.Hour() != 22 {
		t.Fatalf("expected wall clock 22h UTC, got %v", got)
	}
}

func TestSchemaUsesZonedTimestamps(t *testing.T) {
	for _, col := range []string{"created_at timestamptz", "processed_at timestamptz"} {
		if !strings.Contains(postgresSchema, col) {
			t.Errorf("schema must declare %q", col)
		}
	}
	if strings.Contains(postgresSchema, "timestamp,") || strings.Contains(postgresSchema, "timestamp NOT NULL") {
		t.Error("schema still has a timestamp without time zone column")
	}
}
