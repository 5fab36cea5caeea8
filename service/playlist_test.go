package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replay-service/constant"
)

func TestPlaylistRendersCompleteSegments(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())

	dir := env.svc.segmentDir(session.SegmentPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeSegment(t, dir, "seg_a_00003.ts", 12_000)
	writeSegment(t, dir, "seg_a_00004.ts", 12_000)
	writeSegment(t, dir, "seg_a_00005.ts", 500) // mid-write, excluded

	manifest, err := env.svc.Playlist(context.Background(), userId)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	require.Equal(t, []string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-TARGETDURATION:10",
		"#EXT-X-MEDIA-SEQUENCE:3",
	}, lines[:4])
	assert.Contains(t, manifest, "#EXTINF:10.0,\n/api/replay/segments/seg_a_00003.ts\n")
	assert.Contains(t, manifest, "/api/replay/segments/seg_a_00004.ts")
	assert.NotContains(t, manifest, "seg_a_00005.ts")
	assert.Equal(t, "#EXT-X-ENDLIST", lines[len(lines)-1])
}

func TestPlaylistEmptyBuffer(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())
	require.NoError(t, os.MkdirAll(env.svc.segmentDir(session.SegmentPath), 0755))

	_, err := env.svc.Playlist(context.Background(), userId)
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestPlaylistNoActiveSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Playlist(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSegmentFileRejectsInvalidNames(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"../secrets.ts", "a/b.ts", "clip.mp4", ".hidden.ts", ""} {
		_, err := env.svc.SegmentFile(context.Background(), uuid.New(), name)
		assert.ErrorIs(t, err, ErrBadRequest, "name %q", name)
	}
}

func TestSegmentFileRequiresActiveSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.SegmentFile(context.Background(), uuid.New(), "seg_a_00000.ts")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSegmentFileServesIncompleteSegmentDirectly(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())

	dir := env.svc.segmentDir(session.SegmentPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	src := writeSegment(t, dir, "seg_a_00000.ts", 500)

	path, err := env.svc.SegmentFile(context.Background(), userId, "seg_a_00000.ts")
	require.NoError(t, err)
	assert.Equal(t, src, path)
}

func TestSegmentFileReturnsCachedCopy(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())

	dir := env.svc.segmentDir(session.SegmentPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeSegment(t, dir, "seg_a_00000.ts", 12_000)

	cacheDir := env.svc.cacheDir(userId)
	require.NoError(t, os.MkdirAll(cacheDir, 0755))
	cached := writeSegment(t, cacheDir, "seg_a_00000.ts.mp4", 12_000)

	path, err := env.svc.SegmentFile(context.Background(), userId, "seg_a_00000.ts")
	require.NoError(t, err)
	assert.Equal(t, cached, path)
}

func TestSegmentFileCachesRemuxedCopy(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())

	dir := env.svc.segmentDir(session.SegmentPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	writeSegment(t, dir, "seg_a_00001.ts", 12_000)

	path, err := env.svc.SegmentFile(context.Background(), userId, "seg_a_00001.ts")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.svc.cacheDir(userId), "seg_a_00001.ts.mp4"), path)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSegmentFileRemuxFailureServesSource(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())
	env.svc.remux = func(ctx context.Context, inputPath, outputPath string) error {
		return errors.New("broken stream")
	}

	dir := env.svc.segmentDir(session.SegmentPath)
	require.NoError(t, os.MkdirAll(dir, 0755))
	src := writeSegment(t, dir, "seg_a_00001.ts", 12_000)

	path, err := env.svc.SegmentFile(context.Background(), userId, "seg_a_00001.ts")
	require.NoError(t, err)
	assert.Equal(t, src, path)

	_, err = os.Stat(filepath.Join(env.svc.cacheDir(userId), "seg_a_00001.ts.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestSegmentFileUnknownSegment(t *testing.T) {
	env := newTestEnv(t)
	userId := uuid.New()
	session := env.addSession(constant.SessionStatusActive, userId, time.Now())
	require.NoError(t, os.MkdirAll(env.svc.segmentDir(session.SegmentPath), 0755))

	_, err := env.svc.SegmentFile(context.Background(), userId, "seg_a_09999.ts")
	require.ErrorIs(t, err, ErrNotFound)
}
