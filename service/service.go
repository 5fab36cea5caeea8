package service

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"replay-service/config"
	"replay-service/pkg/egress"
	"replay-service/pkg/notify"
	"replay-service/repository"
)

// ErrNotFound marks lookups that missed: no active session for the user, or
// an unknown segment. Handlers map it to 404.
var ErrNotFound = errors.New("not found")

// ErrBadRequest marks client-retryable failures: the external controller
// refused a start/stop, the buffer is empty, or a capture range is invalid.
var ErrBadRequest = errors.New("bad request")

// ObjectStorage is the slice of the object-store client the service needs.
// *minio.Client satisfies it.
type ObjectStorage interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// ReplayService owns the replay-buffer lifecycle: it starts and stops
// recordings against the external egress controller, keeps the persisted
// session rows honest, and cuts clips out of the on-disk segment buffer.
type ReplayService struct {
	repo     repository.SessionRepository
	egress   egress.Controller
	notifier notify.Notifier
	chat     notify.MessageSender
	storage  ObjectStorage
	cfg      *config.Config

	// media-tool invocations, overridable in tests
	concat func(ctx context.Context, paths []string, outputPath string, startOffset, duration float64, trim bool) error
	probe  func(ctx context.Context, path string) (float64, error)
	remux  func(ctx context.Context, inputPath, outputPath string) error

	// userLocks serializes find-active/stop/create per user so two
	// concurrent starts cannot leave two active rows.
	userLocks sync.Map
}

func NewReplayService(
	repo repository.SessionRepository,
	controller egress.Controller,
	notifier notify.Notifier,
	chat notify.MessageSender,
	cfg *config.Config,
) *ReplayService {
	return &ReplayService{
		repo:     repo,
		egress:   controller,
		notifier: notifier,
		chat:     chat,
		storage:  cfg.Storage,
		cfg:      cfg,
		concat:   concatSegments,
		probe:    probeDuration,
		remux:    remuxCopy,
	}
}

func (s *ReplayService) userLock(userId uuid.UUID) *sync.Mutex {
	lock, _ := s.userLocks.LoadOrStore(userId, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// segmentDir resolves a storage-relative segment path to an absolute
// directory under the configured buffer root.
func (s *ReplayService) segmentDir(relPath string) string {
	return filepath.Join(s.cfg.Replay.StorageRoot, relPath)
}

func (s *ReplayService) cacheDir(userId uuid.UUID) string {
	return filepath.Join(s.cfg.Replay.CacheRoot, userId.String())
}
