package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// scratchpadScanBuf is the read buffer cap for journal lines; tool results
// can carry large summaries, so the default bufio.Scanner limit is too small.
const scratchpadScanBuf = 1 << 20

// ScratchpadJournal is the append-only JSONL writer backing a Scratchpad
// (C13). One JSON object per line; reading the file back yields exactly the
// entries appended, in order.
type ScratchpadJournal struct {
	path string
	file *os.File
}

// OpenScratchpadJournal creates (or truncates) the journal file at path,
// creating parent directories as needed.
func OpenScratchpadJournal(path string) (*ScratchpadJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("scratchpad: create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("scratchpad: open journal: %w", err)
	}
	return &ScratchpadJournal{path: path, file: f}, nil
}

// Append writes one entry as a single JSON line.
func (j *ScratchpadJournal) Append(entry ScratchpadEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("scratchpad: encode entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := j.file.Write(data); err != nil {
		return fmt.Errorf("scratchpad: write entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *ScratchpadJournal) Close() error {
	return j.file.Close()
}

// Path returns the journal's file path, for diagnostics.
func (j *ScratchpadJournal) Path() string {
	return j.path
}

// ReadScratchpadJournal reads every entry back from path, in append order.
func ReadScratchpadJournal(path string) ([]ScratchpadEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scratchpad: open journal: %w", err)
	}
	defer f.Close()

	var entries []ScratchpadEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), scratchpadScanBuf)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry ScratchpadEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("scratchpad: decode journal line: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scratchpad: scan journal: %w", err)
	}
	return entries, nil
}
