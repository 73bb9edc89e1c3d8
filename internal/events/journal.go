// Package events provides the append-only run journal: one JSONL line per
// pipeline event, rotated by size.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxSize bounds a journal file before rotation (10MB).
	DefaultMaxSize = 10 * 1024 * 1024
	fileExtension  = ".jsonl"
	archiveDir     = "archive"
)

// Entry is one journal line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Project   string         `json:"project"`
	Stage     string         `json:"stage"`
	EventType string         `json:"event_type"`
	Details   map[string]any `json:"details,omitempty"`
}

// Journal appends run events for one (project, stage) pair to
// logs/<project>_<stage>.jsonl under the working directory.
type Journal struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	path        string
	project     string
	stage       string
	rotations   int
}

// Open creates or appends to the journal for a (project, stage) pair.
func Open(dir, project, stage string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	path := filepath.Join(dir, "logs", fmt.Sprintf("%s_%s%s", project, stage, fileExtension))
	j := &Journal{path: path, project: project, stage: stage, maxSize: maxSize}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) open() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat journal file: %w", err)
	}
	j.file = file
	j.currentSize = stat.Size()
	return nil
}

// Event appends one entry. Journal failures are deliberately swallowed into
// a best-effort write: the journal must never fail a pipeline run.
func (j *Journal) Event(eventType string, details map[string]any) {
	_ = j.write(&Entry{
		Timestamp: time.Now().UTC(),
		Project:   j.project,
		Stage:     j.stage,
		EventType: eventType,
		Details:   details,
	})
}

func (j *Journal) write(entry *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.currentSize+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	j.currentSize += int64(n)
	return nil
}

func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("close journal file: %w", err)
	}

	dir := filepath.Join(filepath.Dir(j.path), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	j.rotations++
	base := filepath.Base(j.path)
	stem := base[:len(base)-len(fileExtension)]
	name := fmt.Sprintf("%s.%s.%d%s", stem, time.Now().Format("20060102_150405"), j.rotations, fileExtension)
	if err := os.Rename(j.path, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("archive journal file: %w", err)
	}

	return j.open()
}

// Close releases the journal file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}
