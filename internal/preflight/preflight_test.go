package preflight

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"hydroingest/internal/testsupport"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckParentAccess(t *testing.T) {
	dir := t.TempDir()
	if res := CheckParentAccess("ledger", filepath.Join(dir, "ledger.db")); !res.Passed {
		t.Fatalf("expected missing file in writable dir to pass: %s", res.Detail)
	}
	if res := CheckParentAccess("ledger", filepath.Join(dir, "missing", "ledger.db")); res.Passed {
		t.Fatal("expected missing parent to fail")
	}
}

func TestCheckStore(t *testing.T) {
	if res := CheckStore(context.Background(), "sqlite", fakePinger{}); !res.Passed {
		t.Fatalf("expected pass, got %s", res.Detail)
	}
	res := CheckStore(context.Background(), "mysql", fakePinger{err: errors.New("connection refused")})
	if res.Passed || res.Detail != "connection refused" || res.Name != "Store (mysql)" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCheckListenAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	if res := CheckListenAddress("metrics", ln.Addr().String()); res.Passed {
		t.Fatal("expected bound address to fail")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg, fakePinger{})
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if Failed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}

	if err := os.RemoveAll(cfg.Paths.QuarantineDir); err != nil {
		t.Fatal(err)
	}
	if !Failed(RunAll(context.Background(), cfg, nil)) {
		t.Fatal("expected missing quarantine directory to fail")
	}
	if RunAll(context.Background(), nil, nil) != nil {
		t.Fatal("expected nil config to yield no results")
	}
}
