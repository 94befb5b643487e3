package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/repository"
)

// PresenceReader 是在线表的只读视图
type PresenceReader interface {
	Rooms() []domain.LiveRoom
}

// LiveTeacher 是直播目录中的一项
type LiveTeacher struct {
	TeacherID string    `json:"teacherId"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	Audience  int       `json:"audience"`
}

// LiveService 提供在线教师目录和直播历史
type LiveService struct {
	presence PresenceReader
	users    repository.UserRepository
	sessions repository.LiveSessionRepository
}

func NewLiveService(presence PresenceReader, users repository.UserRepository, sessions repository.LiveSessionRepository) *LiveService {
	if presence == nil || users == nil || sessions == nil {
		panic("dependencies cannot be nil for LiveService")
	}
	return &LiveService{presence: presence, users: users, sessions: sessions}
}

// ListLive 返回在线教师快照。姓名查询失败时仍返回 ID 列表。
func (s *LiveService) ListLive(ctx context.Context) []LiveTeacher {
	rooms := s.presence.Rooms()
	out := make([]LiveTeacher, 0, len(rooms))
	if len(rooms) == 0 {
		return out
	}

	ids := make([]string, len(rooms))
	for i, r := range rooms {
		ids[i] = r.TeacherID
	}
	names := make(map[string]domain.User, len(ids))
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		logrus.WithError(err).Warn("Failed to resolve live teacher names")
	}
	for _, u := range users {
		names[u.ID] = u
	}

	for _, r := range rooms {
		item := LiveTeacher{TeacherID: r.TeacherID, StartedAt: r.StartedAt, Audience: r.Audience}
		if u, ok := names[r.TeacherID]; ok {
			item.FirstName = u.FirstName
			item.LastName = u.LastName
		}
		out = append(out, item)
	}
	return out
}

// History 返回教师最近的直播记录
func (s *LiveService) History(ctx context.Context, teacherID string, limit int) ([]domain.LiveSession, error) {
	sessions, err := s.sessions.ListByTeacher(ctx, teacherID, limit)
	if err != nil {
		logrus.WithError(err).WithField("teacher_id", teacherID).Error("Failed to load live history")
		return nil, ErrInternalServer
	}
	if sessions == nil {
		sessions = []domain.LiveSession{}
	}
	return sessions, nil
}
