package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourelearner/digiboard44/internal/domain"
)

type LiveSessionRepository struct {
	mock.Mock
}

func (m *LiveSessionRepository) Open(ctx context.Context, session *domain.LiveSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *LiveSessionRepository) CloseOpen(ctx context.Context, teacherID string, endedAt time.Time, reason domain.EndReason, audience int) (int64, error) {
	args := m.Called(ctx, teacherID, endedAt, reason, audience)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LiveSessionRepository) CloseAllExcept(ctx context.Context, liveTeacherIDs []string, endedAt time.Time) (int64, error) {
	args := m.Called(ctx, liveTeacherIDs, endedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *LiveSessionRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]domain.LiveSession, error) {
	args := m.Called(ctx, teacherID, limit)
	sessions, _ := args.Get(0).([]domain.LiveSession)
	return sessions, args.Error(1)
}
