package backends

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "threadrouter-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	backend, err := OpenSQLite(context.Background(), SQLiteConfig{
		Path:        filepath.Join(tmpDir, "nested", "test.db"),
		JournalMode: "WAL",
		BusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestOpenSQLite(t *testing.T) {
	backend := openTestSQLite(t)

	if backend.DB == nil {
		t.Fatal("DB is nil")
	}
	if err := backend.Health.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestSQLiteBackend_Migration(t *testing.T) {
	backend := openTestSQLite(t)
	ctx := context.Background()

	version, err := backend.Migrator.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("expected version %d, got %d", SchemaVersion, version)
	}

	needs, err := backend.Migrator.NeedsMigration(ctx)
	if err != nil {
		t.Fatalf("NeedsMigration failed: %v", err)
	}
	if needs {
		t.Error("expected no migration needed after opening")
	}

	// Migrating again is a no-op.
	if err := backend.Migrator.Migrate(ctx, 0); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestSQLiteBackend_Health(t *testing.T) {
	backend := openTestSQLite(t)

	status, err := backend.Health.Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if healthy, _ := status["healthy"].(bool); !healthy {
		t.Errorf("expected healthy status, got %v", status)
	}
	if v, _ := status["version"].(string); v == "" || v == "unknown" {
		t.Errorf("expected sqlite version, got %q", v)
	}
}

func TestSQLiteDocuments(t *testing.T) {
	backend := openTestSQLite(t)
	docs := backend.Documents
	ctx := context.Background()

	if _, err := docs.Get(ctx, "categorymover/config"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := docs.Put(ctx, "categorymover/config", []byte(`{"enabled":true}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := docs.Put(ctx, "categorymover/config", []byte(`{"enabled":false}`)); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	if err := docs.Put(ctx, "other/doc", []byte(`{}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	body, err := docs.Get(ctx, "categorymover/config")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(body) != `{"enabled":false}` {
		t.Errorf("expected overwritten body, got %s", body)
	}

	keys, err := docs.Keys(ctx, "categorymover/")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "categorymover/config" {
		t.Errorf("unexpected keys: %v", keys)
	}

	if err := docs.Delete(ctx, "categorymover/config"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := docs.Get(ctx, "categorymover/config"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteDocuments_KeysMatchPrefixLiterally(t *testing.T) {
	backend := openTestSQLite(t)
	docs := backend.Documents
	ctx := context.Background()

	for _, key := range []string{"a_b/1", "axb/1", "50%/1", "50x/1", `c\d/1`, "A_b/2"} {
		if err := docs.Put(ctx, key, []byte(`{}`)); err != nil {
			t.Fatalf("Put %q failed: %v", key, err)
		}
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"a_b/", []string{"a_b/1"}},
		{"50%", []string{"50%/1"}},
		{`c\`, []string{`c\d/1`}},
		{"", []string{"50%/1", "50x/1", "A_b/2", "a_b/1", "axb/1", `c\d/1`}},
	}
	for _, tt := range tests {
		keys, err := docs.Keys(ctx, tt.prefix)
		if err != nil {
			t.Fatalf("Keys(%q) failed: %v", tt.prefix, err)
		}
		if strings.Join(keys, ",") != strings.Join(tt.want, ",") {
			t.Errorf("Keys(%q) = %v, want %v", tt.prefix, keys, tt.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Errorf("escapeLike = %q", got)
	}
}

func TestDialect_Rebind(t *testing.T) {
	got := DialectDollar.rebind("SELECT a FROM t WHERE b = ? AND c = ?")
	if got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Errorf("unexpected rebind: %s", got)
	}
	if q := DialectQuestion.rebind("x = ?"); q != "x = ?" {
		t.Errorf("question dialect must not rewrite: %s", q)
	}
}
