package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "stepsync/pkg/logx"
)

// fileStore keeps the push history in <prefix>.pushes.jsonl (append-only
// JSON Lines). Every compactEvery appends the file is rewritten with only the
// newest retain records.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	path   string
	f      *os.File
	retain int

	writes       int
	compactEvery int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	pushPath := prefix + ".pushes.jsonl"
	f, err := os.OpenFile(pushPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		path:         pushPath,
		f:            f,
		retain:       cfg.retain(),
		compactEvery: 500,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) AppendPush(ctx context.Context, r PushRecord) error {
	_ = ctx
	r = normalize(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("push history closed")
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%s.compactEvery == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("push history compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentPushes(ctx context.Context, limit int) ([]PushRecord, error) {
	_ = ctx
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := readRecords(s.path)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]PushRecord, len(all))
	for i, r := range all {
		out[len(all)-1-i] = r
	}
	return out, nil
}

func (s *fileStore) compactLocked() error {
	all, err := readRecords(s.path)
	if err != nil {
		return err
	}
	if len(all) <= s.retain {
		return nil
	}
	keep := all[len(all)-s.retain:]

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range keep {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	// Reopen: the old handle points at the replaced inode.
	_ = s.f.Close()
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		s.f = nil
		return err
	}
	s.f = nf
	_, err = s.f.Seek(0, io.SeekEnd)
	return err
}

func readRecords(path string) ([]PushRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []PushRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r PushRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
