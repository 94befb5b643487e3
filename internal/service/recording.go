package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/repository"
)

// RecordingService 管理学生保存的课程
type RecordingService struct {
	repo repository.RecordingRepository
	now  func() time.Time
}

func NewRecordingService(repo repository.RecordingRepository) *RecordingService {
	if repo == nil {
		panic("RecordingRepository cannot be nil for RecordingService")
	}
	return &RecordingService{repo: repo, now: time.Now}
}

// Create 保存一节课，结束时间取当前时间。
func (s *RecordingService) Create(ctx context.Context, studentID, teacherID, videoURL, whiteboardData string) (*domain.Recording, error) {
	teacherID = strings.TrimSpace(teacherID)
	videoURL = strings.TrimSpace(videoURL)
	if studentID == "" || teacherID == "" || videoURL == "" {
		return nil, ErrInvalidInput
	}

	rec := &domain.Recording{
		TeacherID:      teacherID,
		StudentID:      studentID,
		VideoURL:       videoURL,
		WhiteboardData: domain.BoardData(whiteboardData),
		EndTime:        s.now(),
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": studentID, "teacher_id": teacherID})
	if err := s.repo.Save(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			logCtx.WithError(err).Warn("Recording references unknown teacher")
			return nil, ErrInvalidInput
		}
		logCtx.WithError(err).Error("Failed to save recording")
		return nil, ErrInternalServer
	}
	logCtx.WithField("recording_id", rec.ID).Info("Recording saved")
	return rec, nil
}

// ListForStudent 按时间倒序返回学生的全部记录
func (s *RecordingService) ListForStudent(ctx context.Context, studentID string) ([]domain.Recording, error) {
	recs, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", studentID).Error("Failed to list recordings")
		return nil, ErrInternalServer
	}
	if recs == nil {
		recs = []domain.Recording{}
	}
	return recs, nil
}

// Delete 只能删除自己的记录
func (s *RecordingService) Delete(ctx context.Context, studentID, recordingID string) error {
	err := s.repo.DeleteOwned(ctx, recordingID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordingNotFound) {
			return ErrRecordingNotFound
		}
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": studentID, "recording_id": recordingID}).
			Error("Failed to delete recording")
		return ErrInternalServer
	}
	return nil
}
