package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
	"replay-service/config"
	"replay-service/constant"
	"replay-service/dto"
	"replay-service/entities"
	"replay-service/pkg/egress"
)

type fakeRepo struct {
	mu               sync.Mutex
	sessions         map[uuid.UUID]*entities.EgressSession
	files            []*entities.File
	clips            []*entities.ReplayClip
	endCalls         int
	createSessionErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[uuid.UUID]*entities.EgressSession)}
}

func (r *fakeRepo) GetDB() *gorm.DB { return nil }

func (r *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return callback(ctx)
}

func (r *fakeRepo) CreateSession(ctx context.Context, session *entities.EgressSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createSessionErr != nil {
		return r.createSessionErr
	}
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeRepo) FindActiveByUserId(ctx context.Context, userId uuid.UUID) (*entities.EgressSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.UserId == userId && session.Status == constant.SessionStatusActive {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindByEgressId(ctx context.Context, egressId string) (*entities.EgressSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.EgressId == egressId {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindAllActive(ctx context.Context) ([]*entities.EgressSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*entities.EgressSession
	for _, session := range r.sessions {
		if session.Status == constant.SessionStatusActive {
			copied := *session
			active = append(active, &copied)
		}
	}
	return active, nil
}

func (r *fakeRepo) EndSessionIfActive(ctx context.Context, id uuid.UUID, status constant.SessionStatus, endedAt time.Time, errorMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCalls++
	session, ok := r.sessions[id]
	if !ok || session.Status != constant.SessionStatusActive {
		return false, nil
	}
	session.Status = status
	session.EndedAt = &endedAt
	session.Error = errorMessage
	return true, nil
}

func (r *fakeRepo) CreateFile(ctx context.Context, file *entities.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, file)
	return nil
}

func (r *fakeRepo) CreateClip(ctx context.Context, clip *entities.ReplayClip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips = append(r.clips, clip)
	return nil
}

func (r *fakeRepo) session(id uuid.UUID) *entities.EgressSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *fakeRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, session := range r.sessions {
		if session.Status == constant.SessionStatusActive {
			count++
		}
	}
	return count
}

type fakeEgress struct {
	mu            sync.Mutex
	startInfo     *egress.RecordingInfo
	startReqs     []egress.StartRecordingRequest
	startErr      error
	stopErr       error
	stopCalls     []string
	recordings    map[string]*egress.RecordingInfo
	resolution    *egress.TrackResolution
	resolutionErr error
}

func (f *fakeEgress) StartRecording(ctx context.Context, req egress.StartRecordingRequest) (*egress.RecordingInfo, error) {
	f.mu.Lock()
	f.startReqs = append(f.startReqs, req)
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.startInfo != nil {
		return f.startInfo, nil
	}
	return &egress.RecordingInfo{EgressId: "EG_" + uuid.New().String()[:8], Status: egress.StatusActive}, nil
}

func (f *fakeEgress) StopRecording(ctx context.Context, egressId string) error {
	f.mu.Lock()
	f.stopCalls = append(f.stopCalls, egressId)
	f.mu.Unlock()
	return f.stopErr
}

func (f *fakeEgress) GetRecording(ctx context.Context, egressId string) (*egress.RecordingInfo, error) {
	if f.recordings == nil {
		return nil, nil
	}
	return f.recordings[egressId], nil
}

func (f *fakeEgress) GetTrackResolution(ctx context.Context, roomName, trackId string) (*egress.TrackResolution, error) {
	if f.resolutionErr != nil {
		return nil, f.resolutionErr
	}
	return f.resolution, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []dto.ReplayEvent
}

func (f *fakeNotifier) PublishReplayEvent(ctx context.Context, event dto.ReplayEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeChat struct {
	mu       sync.Mutex
	sendErr  error
	messages []dto.ClipMessage
}

func (f *fakeChat) SendClipMessage(ctx context.Context, msg dto.ClipMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.messages = append(f.messages, msg)
	return uuid.New().String(), nil
}

type fakeStorage struct {
	mu         sync.Mutex
	uploads    []string
	uploadErr  error
	presignErr error
}

func (f *fakeStorage) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return minio.UploadInfo{}, f.uploadErr
	}
	f.uploads = append(f.uploads, objectName)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName}, nil
}

func (f *fakeStorage) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	if f.presignErr != nil {
		return nil, f.presignErr
	}
	return url.Parse("https://storage.test/" + bucketName + "/" + objectName)
}

type testEnv struct {
	svc      *ReplayService
	repo     *fakeRepo
	egress   *fakeEgress
	notifier *fakeNotifier
	chat     *fakeChat
	storage  *fakeStorage
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newFakeRepo()
	controller := &fakeEgress{}
	notifier := &fakeNotifier{}
	chat := &fakeChat{}
	storage := &fakeStorage{}
	cfg := &config.Config{
		MinIOBucket: "replay-test",
		Replay: config.Replay{
			StorageRoot:     t.TempDir(),
			CacheRoot:       t.TempDir(),
			MinSegmentBytes: 10_000,
			RetentionAge:    30 * time.Minute,
			StaleAge:        3 * time.Hour,
		},
	}
	svc := NewReplayService(repo, controller, notifier, chat, cfg)
	svc.storage = storage
	svc.concat = func(ctx context.Context, paths []string, outputPath string, startOffset, duration float64, trim bool) error {
		return os.WriteFile(outputPath, []byte("assembled"), 0644)
	}
	svc.probe = func(ctx context.Context, path string) (float64, error) {
		return 0, errors.New("probe unavailable")
	}
	svc.remux = func(ctx context.Context, inputPath, outputPath string) error {
		return os.WriteFile(outputPath, []byte("remuxed"), 0644)
	}
	return &testEnv{
		svc:      svc,
		repo:     repo,
		egress:   controller,
		notifier: notifier,
		chat:     chat,
		storage:  storage,
		cfg:      cfg,
	}
}

func (e *testEnv) addSession(status constant.SessionStatus, userId uuid.UUID, startedAt time.Time) *entities.EgressSession {
	session := &entities.EgressSession{
		ID:          uuid.New(),
		UserId:      userId,
		RoomName:    "room-" + userId.String()[:8],
		ChannelId:   uuid.New(),
		EgressId:    "EG_" + uuid.New().String()[:8],
		SegmentPath: uuid.New().String(),
		Status:      status,
		StartedAt:   startedAt,
	}
	e.repo.sessions[session.ID] = session
	return session
}
