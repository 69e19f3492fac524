// Package history keeps the ordered record of processed requests and mirrors
// each entry to an append-only Markdown log.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrPersist marks a failure to write an entry to the log file. The entry is
// still held in memory when it is returned.
var ErrPersist = errors.New("history: persist entry")

const (
	fileTimeLayout  = "20060102_150405"
	blockTimeLayout = "2006-01-02 15:04:05"
)

// Entry is one processed request.
type Entry struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	Result    string    `json:"result"`
}

// Options configures a Store.
type Options struct {
	// Dir holds the log file. Empty means the working directory.
	Dir string
	// Now overrides the clock.
	Now func() time.Time
}

// Store is the process-wide history. Ids start at 1 and increase by one per
// Append with no gaps.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	file    *os.File
	path    string
	now     func() time.Time
}

// Open creates the log file for this process lifetime.
func Open(opts Options) (*Store, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	path := filepath.Join(dir, "history_"+now().Format(fileTimeLayout)+".md")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}

	return &Store{file: f, path: path, now: now}, nil
}

// Append assigns the next id, writes the entry's block to the log and adds
// it to the collection. Only this bookkeeping runs under the lock.
func (s *Store) Append(prompt, result string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		ID:        len(s.entries) + 1,
		Timestamp: s.now(),
		Prompt:    prompt,
		Result:    result,
	}

	err := s.write(e)
	s.entries = append(s.entries, e)
	if err != nil {
		return e, fmt.Errorf("%w %d: %v", ErrPersist, e.ID, err)
	}
	return e, nil
}

func (s *Store) write(e Entry) error {
	if s.file == nil {
		return os.ErrClosed
	}
	if _, err := s.file.WriteString(FormatBlock(e)); err != nil {
		return err
	}
	return s.file.Sync()
}

// Snapshot returns a copy of the entries, newest first.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Path returns the log file path.
func (s *Store) Path() string { return s.path }

// Close closes the log file. Later appends are kept in memory only.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// FormatBlock renders one log block.
func FormatBlock(e Entry) string {
	return fmt.Sprintf("## Block %d — %s\n\n**Prompt:**\n\n%s\n\n**Result:**\n\n%s\n\n---\n\n",
		e.ID, e.Timestamp.Format(blockTimeLayout), e.Prompt, e.Result)
}
