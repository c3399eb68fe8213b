package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
)

// ExportTo writes every archived record to w as JSON Lines, oldest first.
func (s *Store) ExportTo(w io.Writer) error {
	recs, err := s.Recent(0)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return nil
}

// ExportFile writes the archive to path as JSON Lines via a temp-file
// rename so a crash never leaves a half-written export.
func (s *Store) ExportFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cortex-history-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := s.ExportTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}

// ImportFrom reads JSON Lines records from r and appends them to the
// archive. Blank lines are skipped; a malformed line aborts the import
// with its line number.
func (s *Store) ImportFrom(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	imported := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec thought.ThinkingRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if err := s.Append(rec); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("read import: %w", err)
	}
	return imported, nil
}

// ImportFile appends the JSON Lines records in path to the archive.
func (s *Store) ImportFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import: %w", err)
	}
	defer f.Close()
	return s.ImportFrom(f)
}
