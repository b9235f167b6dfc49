package snapshot_fs

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// FSStore keeps the snapshot as one JSON document. Paths ending in ".gz"
// are gzip compressed.
type FSStore struct {
	path string
}

func New(path string) *FSStore { return &FSStore{path: path} }

func (s *FSStore) Path() string { return s.path }

func (s *FSStore) Load(_ context.Context) (domain.Snapshot, error) {
	if s.path == "" {
		return domain.Snapshot{}, errors.New("snapshot path is empty")
	}

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return domain.NewSnapshot(), nil
	}
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "open snapshot")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if s.compressed() {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return domain.Snapshot{}, errors.Wrap(err, "open gzip snapshot")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var snap domain.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return migrate(snap)
}

// migrate upgrades older documents in place. Documents written before the
// version field existed are treated as version 1.
func migrate(snap domain.Snapshot) (domain.Snapshot, error) {
	switch {
	case snap.Version == 0:
		snap.Version = 1
	case snap.Version > domain.SnapshotVersion:
		return domain.Snapshot{}, errors.Wrapf(domain.ErrUnsupportedSnapshot,
			"document version %d, supported %d", snap.Version, domain.SnapshotVersion)
	}
	return snap, nil
}

func (s *FSStore) Save(_ context.Context, snap domain.Snapshot) error {
	if s.path == "" {
		return errors.New("snapshot path is empty")
	}
	snap.Version = domain.SnapshotVersion

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create snapshot dir")
	}

	lf, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errors.Wrap(err, "open snapshot lock")
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return errors.Wrap(err, "lock snapshot")
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	if err := s.write(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "close temp snapshot")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "replace snapshot")
	}
	return nil
}

func (s *FSStore) write(f *os.File, snap domain.Snapshot) error {
	if err := s.encode(f, snap); err != nil {
		return err
	}
	return errors.Wrap(f.Sync(), "sync snapshot")
}

func (s *FSStore) encode(w io.Writer, snap domain.Snapshot) error {
	if s.compressed() {
		zw := gzip.NewWriter(w)
		if err := writeJSON(zw, snap); err != nil {
			return err
		}
		return errors.Wrap(zw.Close(), "close gzip snapshot")
	}
	return writeJSON(w, snap)
}

func writeJSON(w io.Writer, snap domain.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(snap), "encode snapshot")
}

func (s *FSStore) compressed() bool {
	return strings.HasSuffix(s.path, ".gz")
}
