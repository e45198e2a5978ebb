// Package store persists monitoring sessions on disk, one self-contained
// directory per session, and transparently migrates the older flat-file
// layout on first access.
//
// Layout:
//
//	<root>/sessions/<id>/session.json   full session document
//	<root>/sessions/<id>/images/*       captured images
//
// Legacy layout (migrated on read, never written):
//
//	<root>/sessions/<id>.json           flat document, absolute image paths
//	<root>/sessions/<id>.json.migrated  inert backup left by migration
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"

	"github.com/driftwatch/driftwatch/internal/apperrors"
	"github.com/driftwatch/driftwatch/internal/session"
)

const (
	sessionsDirName = "sessions"
	sessionFileName = "session.json"
	imagesDirName   = "images"
	migratedSuffix  = ".migrated"
)

// Store is a durable, crash-recoverable session store. Every save
// rewrites the full document; there is no incremental state to repair
// after a crash.
type Store struct {
	root string
	log  logr.Logger
}

// New creates a store rooted at baseDir. The sessions directory is
// created lazily on first save.
func New(baseDir string, log logr.Logger) *Store {
	return &Store{
		root: filepath.Join(baseDir, sessionsDirName),
		log:  log,
	}
}

// Root returns the sessions root directory.
func (s *Store) Root() string {
	return s.root
}

// SessionDir returns the directory owned by the given session.
func (s *Store) SessionDir(id string) string {
	return filepath.Join(s.root, id)
}

// ImagesDir returns the capture image directory for the given session.
func (s *Store) ImagesDir(id string) string {
	return filepath.Join(s.root, id, imagesDirName)
}

func (s *Store) sessionFile(id string) string {
	return filepath.Join(s.root, id, sessionFileName)
}

func (s *Store) legacyFile(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Save writes the complete session document, replacing any previous
// version atomically via a temp file and rename.
func (s *Store) Save(sess *session.Session) error {
	if err := os.MkdirAll(s.ImagesDir(sess.ID), 0755); err != nil {
		err = apperrors.New(apperrors.ErrCodeSessionSave, "failed to create session directory", err)
		s.log.Error(err, "session save failed", "session", sess.ID)
		return err
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		err = apperrors.New(apperrors.ErrCodeSessionSave, "failed to marshal session", err)
		s.log.Error(err, "session save failed", "session", sess.ID)
		return err
	}

	if err := writeFileAtomic(s.sessionFile(sess.ID), data); err != nil {
		err = apperrors.New(apperrors.ErrCodeSessionSave, "failed to write session document", err)
		s.log.Error(err, "session save failed", "session", sess.ID)
		return err
	}

	return nil
}

// Load returns the session with the given id, or nil if no document
// exists in either layout. A legacy flat file is migrated first.
func (s *Store) Load(id string) (*session.Session, error) {
	current := s.sessionFile(id)
	if _, err := os.Stat(current); os.IsNotExist(err) {
		if _, err := os.Stat(s.legacyFile(id)); err == nil {
			return s.migrate(id)
		}
		return nil, nil
	}

	return s.readDocument(current)
}

// LoadAll discovers sessions in both layouts, migrates any legacy ones,
// and returns every resolvable session. A failure to load one session
// is logged and skipped so it cannot block recovery of the rest.
func (s *Store) LoadAll() ([]*session.Session, error) {
	ids, err := s.ListIDs()
	if err != nil {
		return nil, err
	}

	sessions := make([]*session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Load(id)
		if err != nil {
			s.log.Error(err, "skipping unloadable session", "session", id)
			continue
		}
		if sess != nil {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// Delete removes all trace of a session: its directory in the current
// layout and, if still present, its unmigrated legacy flat file.
func (s *Store) Delete(id string) error {
	if err := os.RemoveAll(s.SessionDir(id)); err != nil {
		return apperrors.New(apperrors.ErrCodeSessionDelete, "failed to remove session directory", err)
	}

	legacy := s.legacyFile(id)
	if _, err := os.Stat(legacy); err == nil {
		if err := os.Remove(legacy); err != nil {
			return apperrors.New(apperrors.ErrCodeSessionDelete, "failed to remove legacy session file", err)
		}
	}

	return nil
}

// ListIDs returns the union of session ids visible in either layout,
// sorted. Files bearing the migration marker are never listed.
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.New(apperrors.ErrCodeSessionLoad, "failed to read sessions directory", err)
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir():
			if _, err := os.Stat(s.sessionFile(name)); err == nil {
				seen[name] = true
			}
		case strings.HasSuffix(name, migratedSuffix):
			// Inert migration backup, not a live session.
		case strings.HasSuffix(name, ".json"):
			seen[strings.TrimSuffix(name, ".json")] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Clear empties the sessions root. Test and ops utility.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return apperrors.New(apperrors.ErrCodeSessionDelete, "failed to clear sessions root", err)
	}
	return nil
}

func (s *Store) readDocument(path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionLoad, "failed to read session document", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionLoad, "failed to parse session document", err)
	}

	return &sess, nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory so the final rename is atomic.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), sessionFileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
