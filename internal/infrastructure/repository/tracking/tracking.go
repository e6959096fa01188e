package tracking

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	tracking_domain "github.com/huavcjj/followup/internal/domain/tracking"
	"github.com/huavcjj/followup/internal/metrics"
)

const (
	SheetName = "Email Tracking"

	backupDirName    = "backups"
	backupPrefix     = "email_tracking_backup_"
	backupExt        = ".xlsx"
	backupTimeLayout = "20060102_150405.000000"
)

type Options struct {
	MaxBackups int
	Now        func() time.Time
}

// xlsxStore keeps the snapshot in a spreadsheet with a CSV mirror next to it
// and timestamped copies of previous versions under backups/.
type xlsxStore struct {
	path       string
	csvPath    string
	backupDir  string
	maxBackups int
	now        func() time.Time
}

var _ tracking_domain.Store = (*xlsxStore)(nil)

func NewXLSXStore(path string, opts Options) tracking_domain.Store {
	if opts.MaxBackups < 1 {
		opts.MaxBackups = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dir := filepath.Dir(path)
	return &xlsxStore{
		path:       path,
		csvPath:    strings.TrimSuffix(path, filepath.Ext(path)) + ".csv",
		backupDir:  filepath.Join(dir, backupDirName),
		maxBackups: opts.MaxBackups,
		now:        opts.Now,
	}
}

func (s *xlsxStore) Load(ctx context.Context) (*tracking_domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tracking_domain.NewSnapshot(nil), nil
		}
		return tracking_domain.NewSnapshot(nil), fmt.Errorf("%w: %v", tracking_domain.ErrUnreadableSnapshot, err)
	}

	emails, err := readWorkbook(s.path)
	if err != nil {
		return tracking_domain.NewSnapshot(nil), fmt.Errorf("%w: %s: %v", tracking_domain.ErrUnreadableSnapshot, s.path, err)
	}
	return tracking_domain.NewSnapshot(emails), nil
}

func (s *xlsxStore) Save(ctx context.Context, snapshot *tracking_domain.Snapshot) (err error) {
	defer func() { metrics.RecordStoreSave(err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := s.backupCurrent(); err != nil {
		return err
	}

	now := s.now()
	emails := make([]tracking_domain.TrackedEmail, snapshot.Len())
	if snapshot != nil {
		copy(emails, snapshot.Emails)
	}
	for i := range emails {
		emails[i].LastUpdated = now
	}

	if err := s.writePrimary(emails); err != nil {
		return err
	}
	if err := s.writeCSV(emails); err != nil {
		slog.Warn("failed to write csv mirror", "path", s.csvPath, "error", err)
	}
	s.pruneBackups()

	slog.Info("tracking data saved", "path", s.path, "rows", len(emails))
	return nil
}

func (s *xlsxStore) Restore(ctx context.Context, backupID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := s.backupPath(backupID)
	if err != nil {
		return err
	}

	emails, err := readWorkbook(src)
	if err != nil {
		return fmt.Errorf("backup %s is unreadable: %w", backupID, err)
	}

	if err := s.backupCurrent(); err != nil {
		return err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if err := writeAtomic(s.path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	if err := s.writeCSV(emails); err != nil {
		slog.Warn("failed to write csv mirror", "path", s.csvPath, "error", err)
	}
	s.pruneBackups()

	slog.Info("tracking data restored", "backup", backupID, "rows", len(emails))
	return nil
}

func (s *xlsxStore) ListBackups(ctx context.Context) ([]tracking_domain.BackupInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []tracking_domain.BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	now := s.now()
	backups := make([]tracking_domain.BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age < 0 {
			age = 0
		}
		backups = append(backups, tracking_domain.BackupInfo{
			ID:        entry.Name(),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			SizeBytes: info.Size(),
			Created:   info.ModTime(),
			AgeDays:   int(age.Hours() / 24),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Created.After(backups[j].Created)
		}
		return backups[i].ID > backups[j].ID
	})
	return backups, nil
}

func (s *xlsxStore) backupPath(backupID string) (string, error) {
	if backupID == "" || filepath.Base(backupID) != backupID || !isBackupName(backupID) {
		return "", fmt.Errorf("%w: %q", tracking_domain.ErrBackupNotFound, backupID)
	}
	path := filepath.Join(s.backupDir, backupID)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %q", tracking_domain.ErrBackupNotFound, backupID)
	}
	return path, nil
}

// backupCurrent copies the primary file, if any, into backups/ stamped with
// the store clock so retention follows save order.
func (s *xlsxStore) backupCurrent() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read current data for backup: %w", err)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := s.now()
	name := backupPrefix + now.Format(backupTimeLayout) + backupExt
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(s.backupDir, name)); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s%s_%d%s", backupPrefix, now.Format(backupTimeLayout), i, backupExt)
	}

	path := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Chtimes(path, now, now); err != nil {
		slog.Warn("failed to stamp backup time", "path", path, "error", err)
	}
	return nil
}

func (s *xlsxStore) pruneBackups() {
	backups, err := s.ListBackups(context.Background())
	if err != nil {
		slog.Warn("failed to list backups for pruning", "error", err)
		return
	}
	if len(backups) <= s.maxBackups {
		return
	}
	for _, b := range backups[s.maxBackups:] {
		if err := os.Remove(b.Path); err != nil {
			slog.Warn("failed to remove old backup", "path", b.Path, "error", err)
		}
	}
}

func (s *xlsxStore) writePrimary(emails []tracking_domain.TrackedEmail) error {
	f, err := newWorkbook(emails)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeAtomic(s.path, func(w io.Writer) error { return f.Write(w) }); err != nil {
		return fmt.Errorf("failed to write tracking data: %w", err)
	}
	return nil
}

func (s *xlsxStore) writeCSV(emails []tracking_domain.TrackedEmail) error {
	columns := tracking_domain.Columns()
	return writeAtomic(s.csvPath, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(columns); err != nil {
			return err
		}
		record := make([]string, len(columns))
		for i := range emails {
			for c, column := range columns {
				record[c] = cellText(column, &emails[i])
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// newWorkbook lays out the snapshot on the tracking sheet, header first.
func newWorkbook(emails []tracking_domain.TrackedEmail) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := WriteRows(f, SheetName, emails); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteRows writes the column header and one row per email to sheet.
func WriteRows(f *excelize.File, sheet string, emails []tracking_domain.TrackedEmail) error {
	columns := tracking_domain.Columns()

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range emails {
		row := make([]any, len(columns))
		for c, column := range columns {
			row[c] = cellValue(column, &emails[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return nil
}

func readWorkbook(path string) ([]tracking_domain.TrackedEmail, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// writeAtomic writes to a temp file in the target directory, syncs it and
// renames it over path.
func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
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
	return os.Rename(tmpName, path)
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupExt)
}
