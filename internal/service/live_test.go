package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/repository/mocks"
	"github.com/yourelearner/digiboard44/internal/service"
)

type stubPresence []domain.LiveRoom

func (s stubPresence) Rooms() []domain.LiveRoom { return s }

func TestLiveService_ListLiveResolvesNames(t *testing.T) {
	started := time.Now()
	users := new(mocks.UserRepository)
	svc := service.NewLiveService(stubPresence{
		{TeacherID: "t1", StartedAt: started, Audience: 3},
		{TeacherID: "t2", StartedAt: started},
	}, users, new(mocks.LiveSessionRepository))
	ctx := context.Background()

	users.On("FindByIDs", ctx, []string{"t1", "t2"}).
		Return([]domain.User{{ID: "t1", FirstName: "Ada", LastName: "L"}}, nil).Once()

	live := svc.ListLive(ctx)
	require.Len(t, live, 2)
	assert.Equal(t, "Ada", live[0].FirstName)
	assert.Equal(t, 3, live[0].Audience)
	assert.Empty(t, live[1].FirstName, "未找到的教师只返回 ID")
}

func TestLiveService_ListLiveSurvivesLookupError(t *testing.T) {
	users := new(mocks.UserRepository)
	svc := service.NewLiveService(stubPresence{{TeacherID: "t1"}}, users, new(mocks.LiveSessionRepository))
	users.On("FindByIDs", context.Background(), []string{"t1"}).Return(nil, errors.New("db down")).Once()

	live := svc.ListLive(context.Background())
	require.Len(t, live, 1)
	assert.Equal(t, "t1", live[0].TeacherID)
}

func TestLiveService_ListLiveEmpty(t *testing.T) {
	users := new(mocks.UserRepository)
	svc := service.NewLiveService(stubPresence{}, users, new(mocks.LiveSessionRepository))

	assert.Empty(t, svc.ListLive(context.Background()))
	users.AssertNotCalled(t, "FindByIDs")
}

func TestLiveService_History(t *testing.T) {
	sessions := new(mocks.LiveSessionRepository)
	svc := service.NewLiveService(stubPresence{}, new(mocks.UserRepository), sessions)
	ctx := context.Background()

	sessions.On("ListByTeacher", ctx, "t1", 10).Return([]domain.LiveSession{{ID: 1, TeacherID: "t1"}}, nil).Once()
	history, err := svc.History(ctx, "t1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	sessions.On("ListByTeacher", ctx, "t2", 10).Return(nil, errors.New("boom")).Once()
	_, err = svc.History(ctx, "t2", 10)
	assert.ErrorIs(t, err, service.ErrInternalServer)
}
