package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrSnapshotCorrupted = errors.New("snapshot integrity check failed")
)

// SnapshotInfo describes a saved copy of the bank database.
type SnapshotInfo struct {
	CreatedAt     time.Time `json:"created_at"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Size          int64     `json:"size"`
	Users         int       `json:"users"`
	Accounts      int       `json:"accounts"`
	Transactions  int       `json:"transactions"`
	SchemaVersion int       `json:"schema_version"`
}

// Snapshots saves and restores copies of a bank database.
type Snapshots struct {
	dir string
}

// NewSnapshots keeps snapshots in dir, creating it if needed.
func NewSnapshots(dir string) (*Snapshots, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Snapshots{dir: dir}, nil
}

// DefaultSnapshotDir is the snapshot directory next to dbPath.
func DefaultSnapshotDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "snapshots")
}

// Save copies the live database under name.
func (sn *Snapshots) Save(ctx context.Context, s *SQLiteStorage, name, description string) (*SnapshotInfo, error) {
	if name == "" {
		name = "snapshot-" + time.Now().Format("2006-01-02-150405")
	}
	if err := validateSnapshotName(name); err != nil {
		return nil, err
	}
	dbFile, metaFile := sn.paths(name)
	if _, err := os.Stat(dbFile); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, name)
	}

	info := SnapshotInfo{Name: name, Description: description, CreatedAt: time.Now()}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	info.SchemaVersion = version
	counts := []struct {
		dst   *int
		query string
	}{
		{&info.Users, "SELECT COUNT(*) FROM users"},
		{&info.Accounts, "SELECT COUNT(*) FROM accounts"},
		{&info.Transactions, "SELECT COUNT(*) FROM transactions"},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	// VACUUM INTO takes a literal, so the path is quoted by hand.
	quoted := "'" + strings.ReplaceAll(dbFile, "'", "''") + "'"
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil { // #nosec G202
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	stat, err := os.Stat(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	info.Size = stat.Size()

	if err := writeJSONAtomic(metaFile, info); err != nil {
		if rmErr := os.Remove(dbFile); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save snapshot metadata: %w", err)
	}
	return &info, nil
}

// List returns every snapshot, newest first. Unreadable metadata is skipped.
func (sn *Snapshots) List() ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(sn.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var out []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := readSnapshotInfo(filepath.Join(sn.dir, entry.Name()))
		if err != nil {
			slog.Debug("skipping snapshot metadata", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b SnapshotInfo) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Restore replaces the database at dbPath with the named snapshot.
// The database must not be open while it is restored.
func (sn *Snapshots) Restore(name, dbPath string) (*SnapshotInfo, error) {
	if err := validateSnapshotName(name); err != nil {
		return nil, err
	}
	dbFile, metaFile := sn.paths(name)
	info, err := readSnapshotInfo(metaFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	if err := checkIntegrity(dbFile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotCorrupted, err)
	}

	if err := copyFileAtomic(dbFile, dbPath); err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	// Stale WAL files would replay over the restored copy.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove %s: %w", dbPath+suffix, err)
		}
	}
	return info, nil
}

// Delete removes the named snapshot.
func (sn *Snapshots) Delete(name string) error {
	if err := validateSnapshotName(name); err != nil {
		return err
	}
	dbFile, metaFile := sn.paths(name)
	if err := os.Remove(dbFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if err := os.Remove(metaFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove snapshot metadata: %w", err)
	}
	return nil
}

func (sn *Snapshots) paths(name string) (string, string) {
	return filepath.Join(sn.dir, name+".db"), filepath.Join(sn.dir, name+".json")
}

func validateSnapshotName(name string) error {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid snapshot name %q: cannot contain path separators", name)
	}
	return nil
}

func readSnapshotInfo(path string) (*SnapshotInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return errors.New(result)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
