package service

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
)

// Segment is a single buffered media file. It is derived fresh from a
// directory listing on every read and never persisted.
type Segment struct {
	Filename string
	Sequence int
	Path     string
}

// segmentNamePattern is deliberately strict: it doubles as the traversal
// guard for segment names taken from requests.
var segmentNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*\.ts$`)

// segmentSeqPattern extracts the zero-padded sequence counter the recorder
// appends to each filename. Timestamps embedded in the names can collide
// across segments, so the counter is the only safe order key.
var segmentSeqPattern = regexp.MustCompile(`_(\d+)\.ts$`)

// ListAndSort returns the buffer segments in dir ordered by sequence
// number. A missing or empty directory yields an empty slice; filenames
// that do not carry a sequence token are skipped with a warning.
func ListAndSort(ctx context.Context, dir string) ([]Segment, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !segmentNamePattern.MatchString(name) {
			continue
		}
		match := segmentSeqPattern.FindStringSubmatch(name)
		if match == nil {
			zerolog.Ctx(ctx).Warn().Str("filename", name).Msg("segment file without sequence token, skipping")
			continue
		}
		seq, err := strconv.Atoi(match[1])
		if err != nil {
			zerolog.Ctx(ctx).Warn().Str("filename", name).Msg("unparseable segment sequence, skipping")
			continue
		}
		segments = append(segments, Segment{
			Filename: name,
			Sequence: seq,
			Path:     filepath.Join(dir, name),
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].Sequence < segments[j].Sequence
	})
	return segments, nil
}

// FilterComplete drops segments smaller than minBytes; those are assumed to
// still be mid-write by the recorder. Segments that cannot be stat'd are
// dropped too, not treated as fatal.
func FilterComplete(ctx context.Context, segments []Segment, minBytes int64) []Segment {
	complete := make([]Segment, 0, len(segments))
	for _, segment := range segments {
		info, err := os.Stat(segment.Path)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("filename", segment.Filename).Msg("failed to stat segment, excluding")
			continue
		}
		if info.Size() < minBytes {
			continue
		}
		complete = append(complete, segment)
	}
	return complete
}
