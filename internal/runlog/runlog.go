// Package runlog keeps an append-only CSV record of pipeline runs.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/spendwise/internal/id"
	"github.com/cleared-dev/spendwise/internal/pipeline"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Status    pipeline.Status
	Step      pipeline.StepName // failing step; empty for completed runs
	Rows      int
	Message   string
}

// Header is the CSV header for runs.csv.
const Header = "timestamp,run_id,status,step,rows,message"

// FileName is the log file created under the log directory.
const FileName = "runs.csv"

const (
	numFields    = 6
	colTimestamp = 0
	colRunID     = 1
	colStatus    = 2
	colStep      = 3
	colRows      = 4
	colMessage   = 5
)

// FromState summarises a finished run. err is the error Run returned, if any.
func FromState(st *pipeline.State, err error, now time.Time) Entry {
	e := Entry{Timestamp: now.UTC(), Status: pipeline.StatusFailed}
	if st != nil {
		e.RunID = st.RunID
		e.Status = st.Status
		e.Rows = len(st.Rows)
	}
	var se *pipeline.StepError
	if errors.As(err, &se) {
		e.Step = se.Step
	}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colStatus] = string(e.Status)
	row[colStep] = string(e.Step)
	row[colRows] = strconv.Itoa(e.Rows)
	row[colMessage] = e.Message
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	rows, err := strconv.Atoi(record[colRows])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rows %q: %w", record[colRows], err)
	}
	runID := record[colRunID]
	if runID != "" {
		if runID, err = id.ParseRunID(runID); err != nil {
			return Entry{}, err
		}
	}

	return Entry{
		Timestamp: ts,
		RunID:     runID,
		Status:    pipeline.Status(record[colStatus]),
		Step:      pipeline.StepName(record[colStep]),
		Rows:      rows,
		Message:   record[colMessage],
	}, nil
}

// Append writes entries to <dir>/runs.csv, creating the file and header if needed.
func Append(dir string, entries ...Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/runs.csv, or nil if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
