package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/driftwatch/driftwatch/internal/apperrors"
	"github.com/driftwatch/driftwatch/internal/session"
)

// migrate converts a legacy flat-file session into the current
// per-session directory layout.
//
// Legacy documents carry absolute filesystem paths in their capture
// records. Migration copies each referenced file into the new images
// directory and rewrites the record to a session-relative path; a
// missing source file is logged and its copy skipped, never fatal. The
// flat file is renamed with a migration marker rather than deleted,
// preserving a recovery trail, and is never treated as a live session
// again.
func (s *Store) migrate(id string) (*session.Session, error) {
	legacy := s.legacyFile(id)
	s.log.Info("migrating legacy session", "session", id, "file", legacy)

	sess, err := s.readDocument(legacy)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeMigration, "failed to read legacy session", err)
	}

	imagesDir := s.ImagesDir(id)
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeMigration, "failed to create session directory", err)
	}

	for i := range sess.Screenshots {
		oldPath := sess.Screenshots[i].RelativePath
		if !filepath.IsAbs(oldPath) {
			continue
		}

		name := filepath.Base(oldPath)
		if err := copyFile(oldPath, filepath.Join(imagesDir, name)); err != nil {
			s.log.Error(err, "skipping missing screenshot during migration",
				"session", id, "source", oldPath)
		}
		sess.Screenshots[i].RelativePath = filepath.Join(imagesDirName, name)
	}

	if err := s.Save(sess); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeMigration, "failed to write migrated session", err)
	}

	if err := os.Rename(legacy, legacy+migratedSuffix); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeMigration, "failed to mark legacy file as migrated", err)
	}

	return sess, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
