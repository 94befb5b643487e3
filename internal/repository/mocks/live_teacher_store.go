package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type LiveTeacherStore struct {
	mock.Mock
}

func (m *LiveTeacherStore) AddLiveTeacher(ctx context.Context, teacherID string) error {
	return m.Called(ctx, teacherID).Error(0)
}

func (m *LiveTeacherStore) RemoveLiveTeacher(ctx context.Context, teacherID string) error {
	return m.Called(ctx, teacherID).Error(0)
}

func (m *LiveTeacherStore) ReplaceLiveTeachers(ctx context.Context, teacherIDs []string) error {
	return m.Called(ctx, teacherIDs).Error(0)
}

func (m *LiveTeacherStore) ListLiveTeachers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
