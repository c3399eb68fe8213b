package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := Watch(path, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("a = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange never fired after write")
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int64
	w, err := Watch(path, func() { calls.Add(1) }, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("onChange fired %d times for a sibling file, want 0", got)
	}
}

func TestWatchDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int64
	w, err := Watch(path, func() { calls.Add(1) }, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("a = 2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(400 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("onChange fired %d times for one burst, want 1", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.toml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := Watch(path, func() {})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
