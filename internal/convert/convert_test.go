package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loggertoolsgo/internal/catalog"
	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/filters"
	"loggertoolsgo/internal/formats/seeyou"
	"loggertoolsgo/internal/formats/zander"
	"loggertoolsgo/internal/pipeline"
)

func newTurnPointRegistry() *pipeline.Registry[domain.TurnPoint] {
	reg := pipeline.NewRegistry[domain.TurnPoint]()
	seeyou.Register(reg)
	zander.Register(reg)
	return reg
}

func applyTurnPointFilter(r pipeline.Reader[domain.TurnPoint], name, args string) (pipeline.Reader[domain.TurnPoint], error) {
	switch name {
	case "airfield":
		return filters.Airfield(r), nil
	case "name":
		return filters.Name(r, args)
	case "distance":
		return filters.Distance(r, args)
	default:
		return nil, pipeline.NewMalformedInput("unknown filter: " + name)
	}
}

const seeyouFixture = "name,code,country,lat,lon,elev,style,rwdir,rwlen,freq,desc\r\n" +
	"\"Alpha Field\",\"EDAA\",\"DE\",5112.300N,00812.500E,500.0M,2,90,1200,123.450,\"\"\r\n" +
	"-----Related Tasks-----\r\n"

func TestRunConvertsSeeYouToZander(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cup")
	outPath := filepath.Join(dir, "out.wz")
	if err := os.WriteFile(inPath, []byte(seeyouFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	d := &Driver[domain.TurnPoint]{Registry: newTurnPointRegistry(), ApplyFilter: applyTurnPointFilter}
	summary, err := d.Run(Options{OutPath: outPath, Inputs: []string{inPath}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ObjectCount != 1 {
		t.Errorf("ObjectCount = %d, want 1", summary.ObjectCount)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(out), "Alpha") {
		t.Errorf("output = %q, want it to mention the turnpoint name", out)
	}
}

func TestRunUnlinksOutputOnReadError(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cup")
	outPath := filepath.Join(dir, "out.wz")
	if err := os.WriteFile(inPath, []byte("not a valid seeyou header at all\r\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	d := &Driver[domain.TurnPoint]{Registry: newTurnPointRegistry()}
	_, err := d.Run(Options{OutPath: outPath, Inputs: []string{inPath}})
	if err == nil {
		t.Fatal("expected an error for a malformed input file")
	}

	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Errorf("expected %s to not exist after a failed conversion", outPath)
	}
	matches, _ := filepath.Glob(outPath + ".tmp-*")
	if len(matches) != 0 {
		t.Errorf("expected no leftover temp file, found %v", matches)
	}
}

func TestRunRejectsFiltersWhenUnsupported(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cup")
	outPath := filepath.Join(dir, "out.wz")
	if err := os.WriteFile(inPath, []byte(seeyouFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	d := &Driver[domain.TurnPoint]{Registry: newTurnPointRegistry()} // no ApplyFilter wired
	_, err := d.Run(Options{OutPath: outPath, Inputs: []string{inPath}, FilterSpecs: []string{"airfield"}})
	if err == nil {
		t.Fatal("expected an error when filters are requested but unsupported")
	}
}

func TestRunUsesCatalogOnSecondInvocation(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.cup")
	outPath := filepath.Join(dir, "out.wz")
	catPath := filepath.Join(dir, "cache.sqlite")
	if err := os.WriteFile(inPath, []byte(seeyouFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	bind := func(c *catalog.Catalog) (func(string) ([]domain.TurnPoint, bool, error), func(string, []domain.TurnPoint) error) {
		return c.LookupTurnPoints, c.StoreTurnPoints
	}

	d := &Driver[domain.TurnPoint]{Registry: newTurnPointRegistry(), BindCatalog: bind}
	opts := Options{OutPath: outPath, Inputs: []string{inPath}, CatalogPath: catPath}

	if _, err := d.Run(opts); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Corrupt the input in place without changing its mtime/size: the
	// catalog's (path, mtime, size) key still matches, so a correct cache
	// implementation serves the previously cached turnpoint set instead
	// of re-parsing the now-garbage bytes (which would fail outright).
	info, err := os.Stat(inPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	corrupted := bytes.Repeat([]byte{'X'}, int(info.Size()))
	if err := os.WriteFile(inPath, corrupted, 0o644); err != nil {
		t.Fatalf("corrupt fixture: %v", err)
	}
	if err := os.Chtimes(inPath, info.ModTime(), info.ModTime()); err != nil {
		t.Fatalf("restore mtime: %v", err)
	}

	d2 := &Driver[domain.TurnPoint]{Registry: newTurnPointRegistry(), BindCatalog: bind}
	summary, err := d2.Run(opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.ObjectCount != 1 {
		t.Errorf("ObjectCount = %d, want 1 from cache", summary.ObjectCount)
	}
}
