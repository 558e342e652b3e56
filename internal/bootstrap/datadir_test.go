package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDataDirUsesEnvOverride(t *testing.T) {
	t.Setenv(DataDirEnv, "/tmp/custom-vargos-dir")
	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if dir != "/tmp/custom-vargos-dir" {
		t.Fatalf("DataDir() = %q, want /tmp/custom-vargos-dir", dir)
	}
}

func TestDataDirDefaultsUnderHome(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir: %v", err)
	}
	if want := filepath.Join(home, defaultDataDirName); dir != want {
		t.Fatalf("DataDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirPrefersXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	if got, want := CacheDir("/data"), filepath.Join("/tmp/xdg-cache", "vargos"); got != want {
		t.Fatalf("CacheDir() = %q, want %q", got, want)
	}
}

func TestCacheDirFallsBackUnderDataDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	if got, want := CacheDir("/data"), filepath.Join("/data", "cache"); got != want {
		t.Fatalf("CacheDir() = %q, want %q", got, want)
	}
}

func TestEnsureLayoutCreatesSubdirsIdempotently(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureLayout(dir); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}
	if err := EnsureLayout(dir); err != nil {
		t.Fatalf("second EnsureLayout call: %v", err)
	}
	for _, sub := range []string{"sessions", "media", "channels"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil {
			t.Fatalf("stat %s: %v", sub, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", sub)
		}
	}
}

func TestMediaDirReplacesColonsWithDashes(t *testing.T) {
	got := MediaDir("/data", "telegram:12345")
	want := filepath.Join("/data", "media", "telegram-12345")
	if got != want {
		t.Fatalf("MediaDir() = %q, want %q", got, want)
	}
}

func TestWriteAndRemovePIDFile(t *testing.T) {
	dir := t.TempDir()
	if err := WritePIDFile(dir); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, PIDFileName))
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Fatalf("pid file contents = %q, want newline-terminated", data)
	}

	if err := RemovePIDFile(dir); err != nil {
		t.Fatalf("RemovePIDFile: %v", err)
	}
	if err := RemovePIDFile(dir); err != nil {
		t.Fatalf("RemovePIDFile on already-removed file: %v", err)
	}
}

func TestMediaFilenameFormat(t *testing.T) {
	ts := time.Date(2026, 7, 29, 14, 5, 9, 0, time.UTC)
	name := MediaFilename(ts, []byte("hello"), ".JPG")
	want := "2026-07-29_140509_"
	if len(name) < len(want) || name[:len(want)] != want {
		t.Fatalf("MediaFilename() = %q, want prefix %q", name, want)
	}
	if filepath.Ext(name) != ".jpg" {
		t.Fatalf("MediaFilename() ext = %q, want .jpg", filepath.Ext(name))
	}
}

func TestMediaFilenameDefaultsExtWhenEmpty(t *testing.T) {
	name := MediaFilename(time.Now(), []byte("x"), "")
	if filepath.Ext(name) != ".bin" {
		t.Fatalf("MediaFilename() ext = %q, want .bin", filepath.Ext(name))
	}
}
