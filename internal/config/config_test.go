package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTrimSourceExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"main.lat", "main"},
		{"main.lattice", "main"},
		{"main.txt", "main.txt"},
		{"lat", "lat"},
	}
	for _, tt := range tests {
		if got := TrimSourceExt(tt.in); got != tt.want {
			t.Errorf("TrimSourceExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasSourceExt(t *testing.T) {
	if !HasSourceExt("a/b/c.lat") {
		t.Errorf("c.lat should be recognized")
	}
	if HasSourceExt("c.go") {
		t.Errorf("c.go should not be recognized")
	}
}

func TestLoadProjectMissing(t *testing.T) {
	p, err := LoadProject(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing project file should not error: %v", err)
	}
	if p.Output != "" || p.Level != "" || p.Silent {
		t.Errorf("missing file should yield zero config, got %+v", p)
	}
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	data := "output: out.s\nlevel: ir\nsilent: true\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProject(path)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if p.Output != "out.s" || p.Level != "ir" || !p.Silent {
		t.Errorf("loaded config = %+v", p)
	}
}

func TestLoadProjectMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	if err := os.WriteFile(path, []byte(":\n:::"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(path); err == nil {
		t.Errorf("malformed yaml should error")
	}
}
