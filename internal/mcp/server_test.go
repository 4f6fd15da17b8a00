package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewServer(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    tmpDir,
	}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.root != tmpDir {
		t.Errorf("Server.root = %q, want %q", server.root, tmpDir)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ".spikerecon", "analysis.db")); err != nil {
		t.Errorf("analysis database was not created: %v", err)
	}
}

func TestNewServer_CustomStorePath(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "elsewhere", "runs.db")

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir, StorePath: dbPath})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("store not created at custom path: %v", err)
	}
}

func TestClose(t *testing.T) {
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Multiple closes should be safe
	if err := server.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}
