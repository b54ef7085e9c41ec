package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"loggertoolsgo/internal/domain"
)

func TestTurnPointsCacheHitAfterStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.sqlite")
	inputPath := filepath.Join(dir, "input.cup")
	if err := os.WriteFile(inputPath, []byte("some input bytes"), 0o644); err != nil {
		t.Fatalf("write input file: %v", err)
	}

	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = c.Close() }()

	if _, hit, err := c.LookupTurnPoints(inputPath); err != nil || hit {
		t.Fatalf("expected a cache miss before storing, got hit=%v err=%v", hit, err)
	}

	tps := []domain.TurnPoint{
		{FullName: "Alpha Field", Type: domain.TurnPointTypeAirfield},
		{FullName: "Bravo Strip", Type: domain.TurnPointTypeOutlanding},
	}
	if err := c.StoreTurnPoints(inputPath, tps); err != nil {
		t.Fatalf("StoreTurnPoints: %v", err)
	}

	got, hit, err := c.LookupTurnPoints(inputPath)
	if err != nil {
		t.Fatalf("LookupTurnPoints: %v", err)
	}
	if !hit {
		t.Fatal("expected a cache hit after storing")
	}
	if len(got) != 2 || got[0].FullName != "Alpha Field" || got[1].FullName != "Bravo Strip" {
		t.Errorf("got %+v, want the stored turnpoints back unchanged", got)
	}
}

func TestCacheMissAfterFileChanges(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.sqlite")
	inputPath := filepath.Join(dir, "input.cup")
	if err := os.WriteFile(inputPath, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write input file: %v", err)
	}

	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.StoreTurnPoints(inputPath, []domain.TurnPoint{{FullName: "Alpha"}}); err != nil {
		t.Fatalf("StoreTurnPoints: %v", err)
	}

	// Changing the file's size invalidates the cached mtime/size key.
	if err := os.WriteFile(inputPath, []byte("v1 plus extra bytes"), 0o644); err != nil {
		t.Fatalf("rewrite input file: %v", err)
	}

	if _, hit, err := c.LookupTurnPoints(inputPath); err != nil || hit {
		t.Fatalf("expected a cache miss after the file changed, got hit=%v err=%v", hit, err)
	}
}

func TestListReturnsStoredEntries(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.sqlite")
	tpPath := filepath.Join(dir, "a.cup")
	asPath := filepath.Join(dir, "b.air")
	if err := os.WriteFile(tpPath, []byte("tp"), 0o644); err != nil {
		t.Fatalf("write tp file: %v", err)
	}
	if err := os.WriteFile(asPath, []byte("as"), 0o644); err != nil {
		t.Fatalf("write as file: %v", err)
	}

	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.StoreTurnPoints(tpPath, []domain.TurnPoint{{FullName: "Alpha"}}); err != nil {
		t.Fatalf("StoreTurnPoints: %v", err)
	}
	if err := c.StoreAirspaces(asPath, []domain.Airspace{{Name: "CTR1"}}); err != nil {
		t.Fatalf("StoreAirspaces: %v", err)
	}

	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}
