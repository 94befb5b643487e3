package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yourelearner/digiboard44/internal/domain"
)

type RecordingRepository struct {
	mock.Mock
}

func (m *RecordingRepository) Save(ctx context.Context, rec *domain.Recording) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RecordingRepository) FindByStudent(ctx context.Context, studentID string) ([]domain.Recording, error) {
	args := m.Called(ctx, studentID)
	recs, _ := args.Get(0).([]domain.Recording)
	return recs, args.Error(1)
}

func (m *RecordingRepository) DeleteOwned(ctx context.Context, id, studentID string) error {
	args := m.Called(ctx, id, studentID)
	return args.Error(0)
}
