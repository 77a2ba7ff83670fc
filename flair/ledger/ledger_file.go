package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Flat-file store, one pair of files per thread in a directory:
//
//   - `<thread>_completed.log`: one id per line, append-only
//   - `<thread>_pending.log`: one id per line, rewritten in full on every change
type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(threadID, kind string) (string, error) {
	if err := checkThreadID(threadID); err != nil {
		return "", err
	}
	if strings.ContainsAny(threadID, `/\`) || threadID == "." || threadID == ".." {
		return "", fmt.Errorf("invalid thread id for file ledger: %q", threadID)
	}
	return filepath.Join(s.Dir, threadID+"_"+kind+".log"), nil
}

func (s *FileStore) Load(ctx context.Context, threadID string) (*Record, error) {
	rec := NewRecord(threadID)
	for kind, set := range map[string]map[string]bool{"completed": rec.Completed, "pending": rec.Pending} {
		p, err := s.path(threadID, kind)
		if err != nil {
			return nil, err
		}
		if err := readLines(p, set); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func readLines(p string, into map[string]bool) error {
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			into[line] = true
		}
	}
	return scanner.Err()
}

func (s *FileStore) AppendCompleted(ctx context.Context, threadID, id string) error {
	p, err := s.path(threadID, "completed")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReplacePending writes a temporary file and renames it over the old one.
func (s *FileStore) ReplacePending(ctx context.Context, threadID string, ids []string) error {
	p, err := s.path(threadID, "pending")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.Dir, threadID+"_pending.*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	w := bufio.NewWriter(tmp)
	for _, id := range ids {
		if _, err := w.WriteString(id + "\n"); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}
