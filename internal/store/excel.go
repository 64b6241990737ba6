// This file implements an xlsx workbook report store.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/xuri/excelize/v2"
)

const excelBackend = "xlsx"

// ExcelReportStore appends complaints as rows of the first sheet of an
// xlsx workbook. A single mutex serializes every write to the file.
type ExcelReportStore struct {
	path string
	mu   sync.Mutex
}

// NewExcelReportStore creates a store for the workbook at path. The file is
// created on EnsureInitialized or on the first Append.
func NewExcelReportStore(path string) *ExcelReportStore {
	return &ExcelReportStore{path: path}
}

// Path returns the workbook location.
func (s *ExcelReportStore) Path() string {
	return s.path
}

// EnsureInitialized creates the workbook with the header row if absent.
func (s *ExcelReportStore) EnsureInitialized(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return persistErr(excelBackend, "initialize", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked()
}

func (s *ExcelReportStore) ensureLocked() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Error("ExcelReportStore stat failed", "error", err, "path", s.path)
		return persistErr(excelBackend, "initialize", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), DefaultDirPermissions); err != nil {
		slog.Error("Failed to create report directory", "error", err, "path", s.path)
		return persistErr(excelBackend, "initialize", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", toCells(models.ReportHeader)); err != nil {
		return persistErr(excelBackend, "initialize", err)
	}
	if err := s.saveAtomically(f); err != nil {
		slog.Error("ExcelReportStore initialize failed", "error", err, "path", s.path)
		return persistErr(excelBackend, "initialize", err)
	}
	slog.Info("Report workbook created", "path", s.path)
	return nil
}

// Append writes rec as the next row of the workbook.
func (s *ExcelReportStore) Append(ctx context.Context, rec models.ComplaintRecord) error {
	if err := ctx.Err(); err != nil {
		return persistErr(excelBackend, "append", err)
	}
	if err := rec.Validate(); err != nil {
		return persistErr(excelBackend, "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(); err != nil {
		return err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		slog.Error("ExcelReportStore open failed", "error", err, "path", s.path)
		return persistErr(excelBackend, "append", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return persistErr(excelBackend, "append", fmt.Errorf("read rows: %w", err))
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return persistErr(excelBackend, "append", err)
	}
	if err := f.SetSheetRow(sheet, cell, toCells(rec.Row())); err != nil {
		return persistErr(excelBackend, "append", err)
	}
	if err := s.saveAtomically(f); err != nil {
		slog.Error("ExcelReportStore save failed", "error", err, "path", s.path, "id", rec.ID)
		return persistErr(excelBackend, "append", err)
	}

	slog.Debug("ExcelReportStore Append succeeded", "path", s.path, "row", len(rows)+1, "id", rec.ID)
	return nil
}

// saveAtomically writes to a sibling temp file and renames it over the
// workbook, so a failed save leaves the previous rows intact.
func (s *ExcelReportStore) saveAtomically(f *excelize.File) error {
	tmp := s.path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Rows returns every row of the workbook including the header.
func (s *ExcelReportStore) Rows() ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
}

// Close is a no-op; the workbook is opened per append.
func (s *ExcelReportStore) Close() error {
	return nil
}

func toCells(values []string) *[]interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &cells
}
