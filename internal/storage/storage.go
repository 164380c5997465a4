// Package storage keeps a CSV ledger of the responses generated through the
// dashboard.
//
// This package implements a two-tier storage system:
//  1. CSV file for persistence (survives restarts)
//  2. In-memory map for fast lookups
//
// Thread-safety:
//   - All operations are protected by mutex
//   - Safe for concurrent access from the HTTP server and the CLI
package storage

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"cdash/internal/complaint"
)

const (
	// DefaultFile is the ledger path used when none is configured.
	DefaultFile = "responses.csv"

	// bufferSize for buffered I/O (64KB)
	bufferSize = 64 * 1024
)

var header = []string{"complaint_id", "generated_at", "coupon"}

// Entry is one generated response.
//
// Fields:
//   - ComplaintID: Backend id of the complaint
//   - GeneratedAt: When the response was generated
//   - Coupon: Coupon code attached to the response, empty when none
type Entry struct {
	ComplaintID int64
	GeneratedAt time.Time
	Coupon      string
}

// Storage is the response ledger.
//
// Data flow:
//
//	Read:  CSV → Load into map → Serve from map
//	Write: Update map → Append to CSV
type Storage struct {
	mu      sync.Mutex
	path    string
	entries map[int64]Entry
	now     func() time.Time
	logger  *zap.Logger
}

// New opens the ledger at path, loading existing entries. A missing file is
// created on first write.
func New(path string, logger *zap.Logger) (*Storage, error) {
	if path == "" {
		path = DefaultFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Storage{
		path:    path,
		entries: make(map[int64]Entry),
		now:     time.Now,
		logger:  logger,
	}
	if err := s.loadFromFile(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadFromFile loads the ledger into memory.
//
// Error handling:
//   - File not found: Normal on first run
//   - Malformed rows: Skipped with warning
func (s *Storage) loadFromFile() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no existing ledger found, starting empty", zap.String("path", s.path))
			return nil
		}
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		e, err := parseRow(row)
		if err != nil {
			s.logger.Warn("skipping malformed ledger row", zap.Int("line", i+1), zap.Error(err))
			continue
		}
		s.entries[e.ComplaintID] = e
	}

	s.logger.Info("ledger loaded", zap.String("path", s.path), zap.Int("entries", len(s.entries)))
	return nil
}

func parseRow(row []string) (Entry, error) {
	if len(row) < 2 {
		return Entry{}, fmt.Errorf("expected at least 2 columns, got %d", len(row))
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("complaint id: %w", err)
	}
	at, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return Entry{}, fmt.Errorf("generated_at: %w", err)
	}
	e := Entry{ComplaintID: id, GeneratedAt: at}
	if len(row) >= 3 {
		e.Coupon = row[2]
	}
	return e, nil
}

// Record stores resp and reports whether a response had already been
// recorded for the same complaint. The newest entry wins.
func (s *Storage) Record(resp complaint.GeneratedResponse) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{ComplaintID: resp.ComplaintID, GeneratedAt: s.now().UTC().Truncate(time.Second)}
	if resp.Coupon != nil {
		e.Coupon = resp.Coupon.Code
	}
	_, existed := s.entries[e.ComplaintID]

	if err := s.appendLocked(e); err != nil {
		return existed, err
	}
	s.entries[e.ComplaintID] = e
	return existed, nil
}

// appendLocked appends one row, writing the header when the file is new.
func (s *Storage) appendLocked(e Entry) error {
	info, statErr := os.Stat(s.path)
	fresh := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	bufferedWriter := bufio.NewWriterSize(file, bufferSize)
	writer := csv.NewWriter(bufferedWriter)
	if fresh {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	row := []string{strconv.FormatInt(e.ComplaintID, 10), e.GeneratedAt.Format(time.RFC3339), e.Coupon}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return bufferedWriter.Flush()
}

// Get returns the entry of a complaint.
func (s *Storage) Get(complaintID int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[complaintID]
	return e, ok
}

// Has reports whether a response was generated for the complaint.
func (s *Storage) Has(complaintID int64) bool {
	_, ok := s.Get(complaintID)
	return ok
}

// List returns every entry, newest first.
func (s *Storage) List() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ComplaintID < out[j].ComplaintID
	})
	return out
}

// Len returns the number of complaints in the ledger.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
