package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), logr.Discard())
}

func testSession() *session.Session {
	sess := session.New(session.Target{
		Type:     session.TargetURL,
		URL:      "https://example.com",
		Viewport: &session.Viewport{Width: 1280, Height: 800},
	}, 30, "/tmp/ref.png", true)

	diff := 1.5
	sess.AppendCapture(session.Capture{
		RelativePath:         "images/capture-1.png",
		Timestamp:            time.Now().UTC().Truncate(time.Second),
		DifferencePercentage: &diff,
	})
	return sess
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	sess := testSession()

	require.NoError(t, s.Save(sess))

	loaded, err := s.Load(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, sess, loaded)

	assert.DirExists(t, s.ImagesDir(sess.ID))
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)

	loaded, err := s.Load("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	sess := testSession()

	require.NoError(t, s.Save(sess))

	diff := 4.2
	sess.AppendCapture(session.Capture{
		RelativePath:         "images/capture-2.png",
		Timestamp:            time.Now().UTC().Truncate(time.Second),
		DifferencePercentage: &diff,
		HasSignificantChange: true,
	})
	require.NoError(t, s.Save(sess))

	loaded, err := s.Load(sess.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Screenshots, 2)
	assert.Equal(t, "images/capture-2.png", loaded.Screenshots[1].RelativePath)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	sess := testSession()
	require.NoError(t, s.Save(sess))

	require.NoError(t, s.Delete(sess.ID))

	assert.NoDirExists(t, s.SessionDir(sess.ID))
	loaded, err := s.Load(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Deleting a session that does not exist is a no-op.
	assert.NoError(t, s.Delete("ghost"))
}

func TestStore_ListIDs(t *testing.T) {
	s := newTestStore(t)

	// Empty store, not even a root directory yet.
	ids, err := s.ListIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)

	a := testSession()
	b := testSession()
	require.NoError(t, s.Save(a))
	require.NoError(t, s.Save(b))

	// One legacy flat file alongside the current layout.
	legacy := testSession()
	writeLegacySession(t, s, legacy)

	ids, err = s.ListIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID, legacy.ID}, ids)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testSession()))
	require.NoError(t, s.Save(testSession()))

	require.NoError(t, s.Clear())

	ids, err := s.ListIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_LoadAll_SkipsCorrupt(t *testing.T) {
	s := newTestStore(t)
	good := testSession()
	require.NoError(t, s.Save(good))

	// A corrupt session document must not block the others.
	corruptDir := s.SessionDir("corrupt-session")
	require.NoError(t, os.MkdirAll(corruptDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(corruptDir, "session.json"), []byte("{not json"), 0644))

	sessions, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, good.ID, sessions[0].ID)
}

// writeLegacySession persists sess in the old flat-file layout with
// absolute screenshot paths pointing at real files.
func writeLegacySession(t *testing.T, s *Store, sess *session.Session) (imageSources []string) {
	t.Helper()

	srcDir := t.TempDir()
	for i := range sess.Screenshots {
		src := filepath.Join(srcDir, filepath.Base(sess.Screenshots[i].RelativePath))
		require.NoError(t, os.WriteFile(src, []byte("image-bytes-"+sess.ID), 0644))
		sess.Screenshots[i].RelativePath = src
		imageSources = append(imageSources, src)
	}

	data, err := json.Marshal(sess)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(s.Root(), 0755))
	require.NoError(t, os.WriteFile(s.legacyFile(sess.ID), data, 0644))
	return imageSources
}

func TestStore_MigratesLegacyOnLoad(t *testing.T) {
	s := newTestStore(t)
	sess := testSession()
	sources := writeLegacySession(t, s, sess)

	loaded, err := s.Load(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// Paths are rewritten to be session-relative and resolve to the same
	// bytes as before migration.
	require.Len(t, loaded.Screenshots, 1)
	rel := loaded.Screenshots[0].RelativePath
	assert.False(t, filepath.IsAbs(rel))

	migrated, err := os.ReadFile(filepath.Join(s.SessionDir(sess.ID), rel))
	require.NoError(t, err)
	original, err := os.ReadFile(sources[0])
	require.NoError(t, err)
	assert.Equal(t, original, migrated)

	// The flat file is renamed, not deleted.
	assert.NoFileExists(t, s.legacyFile(sess.ID))
	assert.FileExists(t, s.legacyFile(sess.ID)+migratedSuffix)
}

func TestStore_MigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	sess := testSession()
	writeLegacySession(t, s, sess)

	first, err := s.Load(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, first)

	// Second load sees only the migrated document; nothing is re-migrated.
	second, err := s.Load(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The marker file is never listed as a live session.
	ids, err := s.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{sess.ID}, ids)
}

func TestStore_MigrationSkipsMissingScreenshots(t *testing.T) {
	s := newTestStore(t)
	sess := testSession()
	diff := 2.5
	sess.AppendCapture(session.Capture{
		RelativePath:         "images/capture-2.png",
		Timestamp:            time.Now().UTC().Truncate(time.Second),
		DifferencePercentage: &diff,
	})
	sources := writeLegacySession(t, s, sess)

	// Remove one source file before migrating.
	require.NoError(t, os.Remove(sources[0]))

	loaded, err := s.Load(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	// Both records survive with relative paths; only the second file
	// exists on disk.
	require.Len(t, loaded.Screenshots, 2)
	for _, c := range loaded.Screenshots {
		assert.False(t, filepath.IsAbs(c.RelativePath))
	}
	assert.NoFileExists(t, filepath.Join(s.SessionDir(sess.ID), loaded.Screenshots[0].RelativePath))
	assert.FileExists(t, filepath.Join(s.SessionDir(sess.ID), loaded.Screenshots[1].RelativePath))
}

func TestStore_LoadAll_MixedLayouts(t *testing.T) {
	s := newTestStore(t)

	current := testSession()
	require.NoError(t, s.Save(current))

	legacy := testSession()
	writeLegacySession(t, s, legacy)

	sessions, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]*session.Session{}
	for _, sess := range sessions {
		byID[sess.ID] = sess
	}
	assert.Contains(t, byID, current.ID)
	assert.Contains(t, byID, legacy.ID)

	// The legacy session is now fully migrated.
	assert.FileExists(t, filepath.Join(s.SessionDir(legacy.ID), "session.json"))
}

func TestStore_DeleteLegacyUnmigrated(t *testing.T) {
	s := newTestStore(t)
	legacy := testSession()
	writeLegacySession(t, s, legacy)

	require.NoError(t, s.Delete(legacy.ID))
	assert.NoFileExists(t, s.legacyFile(legacy.ID))

	ids, err := s.ListIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
