package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"replay-service/constant"
	"replay-service/entities"
)

// SessionRepository persists egress sessions and the clip artifacts cut
// from them. Lookups that miss return (nil, nil) rather than an error so
// callers can treat absence as a domain condition.
type SessionRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	CreateSession(ctx context.Context, session *entities.EgressSession) error
	FindActiveByUserId(ctx context.Context, userId uuid.UUID) (*entities.EgressSession, error)
	FindByEgressId(ctx context.Context, egressId string) (*entities.EgressSession, error)
	FindAllActive(ctx context.Context) ([]*entities.EgressSession, error)
	// EndSessionIfActive transitions a session out of the active status.
	// It reports false when the row was not active anymore, which makes
	// duplicate stop triggers (webhook, reconciler, user stop) no-ops.
	EndSessionIfActive(ctx context.Context, id uuid.UUID, status constant.SessionStatus, endedAt time.Time, errorMessage *string) (bool, error)
	CreateFile(ctx context.Context, file *entities.File) error
	CreateClip(ctx context.Context, clip *entities.ReplayClip) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) SessionRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().Transaction(func(tx *gorm.DB) error {
		err := callback(ctx)
		if err != nil {
			return err
		}
		return nil
	}, opts...)
}

func (r *repo) CreateSession(ctx context.Context, session *entities.EgressSession) error {
	return r.GetDB().WithContext(ctx).Create(session).Error
}

func (r *repo) FindActiveByUserId(ctx context.Context, userId uuid.UUID) (*entities.EgressSession, error) {
	session := &entities.EgressSession{}
	err := r.GetDB().WithContext(ctx).
		Where("user_id = ? AND status = ?", userId, constant.SessionStatusActive).
		First(session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repo) FindByEgressId(ctx context.Context, egressId string) (*entities.EgressSession, error) {
	session := &entities.EgressSession{}
	err := r.GetDB().WithContext(ctx).First(session, "egress_id = ?", egressId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *repo) FindAllActive(ctx context.Context) ([]*entities.EgressSession, error) {
	var sessions []*entities.EgressSession
	err := r.GetDB().WithContext(ctx).
		Where("status = ?", constant.SessionStatusActive).
		Order("started_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repo) EndSessionIfActive(ctx context.Context, id uuid.UUID, status constant.SessionStatus, endedAt time.Time, errorMessage *string) (bool, error) {
	updates := map[string]interface{}{
		"status":   status,
		"ended_at": endedAt,
	}
	if errorMessage != nil {
		updates["error"] = *errorMessage
	}
	res := r.GetDB().WithContext(ctx).
		Model(&entities.EgressSession{}).
		Where("id = ? AND status = ?", id, constant.SessionStatusActive).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CreateFile(ctx context.Context, file *entities.File) error {
	return r.GetDB().WithContext(ctx).Create(file).Error
}

func (r *repo) CreateClip(ctx context.Context, clip *entities.ReplayClip) error {
	return r.GetDB().WithContext(ctx).Create(clip).Error
}
