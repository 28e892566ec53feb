package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
)

func createUser(t *testing.T, db *DB, username string, role user.Role) user.User {
	t.Helper()
	usr, err := db.CreateUser(context.Background(), user.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: username,
		Role:      role,
		IsActive:  true,
	})
	require.NoError(t, err)
	return usr
}

func createAchievement(t *testing.T, db *DB, owner user.User, points int, public bool, at time.Time) achievement.Achievement {
	t.Helper()
	a, err := db.CreateAchievement(context.Background(), achievement.Achievement{
		Submission: submission.Submission{
			Kind:       submission.KindAchievement,
			OwnerID:    owner.ID,
			CategoryID: TechnicalSkillsID,
			Title:      "Hackathon",
			Status:     submission.StatusPending,
			Priority:   submission.PriorityMedium,
			Points:     points,
			IsPublic:   public,
			CreatedAt:  at,
			UpdatedAt:  at,
		},
	})
	require.NoError(t, err)
	return a
}

func approve(reviewer user.User, at time.Time) submission.Transition {
	return submission.Transition{
		Action:     submission.ActionApprove,
		To:         submission.StatusApproved,
		ReviewerID: reviewer.ID,
		ReviewedAt: at,
	}
}

func TestDB_ApplyTransition(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	student := createUser(t, db, "jane", user.RoleStudent)
	faculty := createUser(t, db, "prof", user.RoleFaculty)

	first := createAchievement(t, db, student, 100, true, now)
	second := createAchievement(t, db, student, 50, true, now)

	sub, err := db.ApplyTransition(ctx, submission.KindAchievement, first.ID, approve(faculty, now))
	require.NoError(t, err)
	assert.Equal(t, submission.StatusApproved, sub.Status)
	assert.Equal(t, "jane", sub.OwnerName)
	assert.Equal(t, "Technical Skills", sub.CategoryName)

	_, err = db.ApplyTransition(ctx, submission.KindAchievement, second.ID, approve(faculty, now))
	require.NoError(t, err)

	p, err := db.GetOrCreate(ctx, student.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 150, p.TotalPoints)
	assert.Equal(t, 2, p.AchievementsCount)

	_, err = db.ApplyTransition(ctx, submission.KindAchievement, first.ID, approve(faculty, now))
	assert.Equal(t, submission.ErrNotPending, err)
	_, err = db.ApplyTransition(ctx, submission.KindCertificate, first.ID, approve(faculty, now))
	assert.Equal(t, submission.ErrNotFound, err)

	p, err = db.GetOrCreate(ctx, student.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 150, p.TotalPoints, "a failed review must not credit again")

	n, err := db.CountReviewsBy(ctx, faculty.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDB_ApplyTransition_concurrentReviews(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	student := createUser(t, db, "jane", user.RoleStudent)
	reviewers := []user.User{
		createUser(t, db, "prof", user.RoleFaculty),
		createUser(t, db, "dean", user.RoleAdmin),
	}
	a := createAchievement(t, db, student, 40, false, now)

	const attempts = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := approve(reviewers[i%2], now)
			if i%3 == 0 {
				tr.Action, tr.To, tr.Reason = submission.ActionReject, submission.StatusRejected, "duplicate"
			}
			_, err := db.ApplyTransition(ctx, submission.KindAchievement, a.ID, tr)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if core.IsInvalidState(err) {
				conflict++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflict)

	reviews, err := db.QueryReviews(ctx, submission.KindAchievement, a.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	p, err := db.GetOrCreate(ctx, student.ID, now)
	require.NoError(t, err)
	if reviews[0].Action == submission.ActionApprove {
		assert.Equal(t, 40, p.TotalPoints)
		assert.Equal(t, 1, p.AchievementsCount)
	} else {
		assert.Zero(t, p.TotalPoints)
		assert.Zero(t, p.AchievementsCount)
	}
}

func TestDB_volunteeringCredit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	student := createUser(t, db, "jane", user.RoleStudent)
	faculty := createUser(t, db, "prof", user.RoleFaculty)

	act, err := db.CreateActivity(ctx, volunteering.Activity{
		Submission: submission.Submission{
			Kind:       submission.KindVolunteering,
			OwnerID:    student.ID,
			CategoryID: EducationID,
			Title:      "Tutoring",
			Status:     submission.StatusPending,
			Priority:   submission.PriorityLow,
			Points:     9,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		Organization:     "City library",
		ActivityDate:     core.NewDate(now),
		HoursVolunteered: 4.5,
	})
	require.NoError(t, err)

	_, err = db.ApplyTransition(ctx, submission.KindVolunteering, act.ID, approve(faculty, now))
	require.NoError(t, err)

	p, err := db.GetOrCreate(ctx, student.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 9, p.TotalPoints)
	assert.Equal(t, 4.5, p.VolunteeringHours)
	assert.Zero(t, p.AchievementsCount)

	stats, err := db.SubmissionStats(ctx, submission.KindVolunteering, student.ID, now.AddDate(0, -1, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Approved)
	if assert.NotNil(t, stats.TotalHours) {
		assert.Equal(t, 4.5, *stats.TotalHours)
	}
}

func TestDB_QueryAchievements_scope(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	jane := createUser(t, db, "jane", user.RoleStudent)
	john := createUser(t, db, "john", user.RoleStudent)
	faculty := createUser(t, db, "prof", user.RoleFaculty)

	janePending := createAchievement(t, db, jane, 10, true, now)
	johnPublic := createAchievement(t, db, john, 10, true, now.Add(time.Minute))
	johnPrivate := createAchievement(t, db, john, 10, false, now.Add(2*time.Minute))
	for _, id := range []string{johnPublic.ID, johnPrivate.ID} {
		_, err := db.ApplyTransition(ctx, submission.KindAchievement, id, approve(faculty, now))
		require.NoError(t, err)
	}

	ids := func(list []achievement.Achievement) []string {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		scope submission.Scope
		want  []string
	}{
		{"staff", submission.Scope{All: true}, []string{johnPrivate.ID, johnPublic.ID, janePending.ID}},
		{"owner", submission.Scope{ViewerID: jane.ID}, []string{johnPublic.ID, janePending.ID}},
		{"other student", submission.Scope{ViewerID: john.ID}, []string{johnPrivate.ID, johnPublic.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			list, err := db.QueryAchievements(ctx, tc.scope, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(list))
		})
	}

	list, err := db.QueryAchievements(ctx, submission.Scope{All: true},
		&achievement.QueryFilter{Status: submission.StatusPending}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{janePending.ID}, ids(list))
}

func TestDB_DeleteAchievement(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	jane := createUser(t, db, "jane", user.RoleStudent)
	faculty := createUser(t, db, "prof", user.RoleFaculty)

	a := createAchievement(t, db, jane, 10, true, now)
	_, err := db.ToggleLike(ctx, submission.KindAchievement, a.ID, faculty.ID, now)
	require.NoError(t, err)
	_, err = db.ApplyTransition(ctx, submission.KindAchievement, a.ID, approve(faculty, now))
	require.NoError(t, err)

	assert.Equal(t, submission.ErrNotPending, db.DeleteAchievement(ctx, a.ID, true))
	require.NoError(t, db.DeleteAchievement(ctx, a.ID, false))
	assert.Equal(t, achievement.ErrNotFound, db.DeleteAchievement(ctx, a.ID, false))

	reviews, err := db.QueryReviews(ctx, submission.KindAchievement, a.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.Empty(t, db.likes)

	p, err := db.GetOrCreate(ctx, jane.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 10, p.TotalPoints, "credits survive the deletion of the submission")
}

func TestDB_ToggleLike(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	jane := createUser(t, db, "jane", user.RoleStudent)
	a := createAchievement(t, db, jane, 10, true, now)

	liked, err := db.ToggleLike(ctx, submission.KindAchievement, a.ID, jane.ID, now)
	require.NoError(t, err)
	assert.True(t, liked)
	got, err := db.GetAchievement(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)

	liked, err = db.ToggleLike(ctx, submission.KindAchievement, a.ID, jane.ID, now)
	require.NoError(t, err)
	assert.False(t, liked)

	_, err = db.ToggleLike(ctx, submission.KindCertificate, a.ID, jane.ID, now)
	assert.Equal(t, submission.ErrNotFound, err)
}

func TestDB_notifications(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)
	db := NewDB()
	jane := createUser(t, db, "jane", user.RoleStudent)
	past := now.Add(-time.Hour)

	_, err := db.CreateNotifications(ctx,
		notification.Notification{UserID: jane.ID, Type: notification.TypeSystemAlert, Title: "a", Message: "a", Priority: notification.PriorityLow, CreatedAt: now},
		notification.Notification{UserID: "ghost", Type: notification.TypeSystemAlert, Title: "b", Message: "b", Priority: notification.PriorityLow, CreatedAt: now},
	)
	assert.Equal(t, notification.ErrRecipientNotFound, err)
	list, err := db.QueryNotifications(ctx, jane.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, list, "a batch with an unknown recipient is not created at all")

	_, err = db.CreateNotifications(ctx,
		notification.Notification{UserID: jane.ID, Type: notification.TypeSystemAlert, Title: "a", Message: "a", Priority: notification.PriorityLow, CreatedAt: now},
		notification.Notification{UserID: jane.ID, Type: notification.TypeAchievement, Title: "b", Message: "b", Priority: notification.PriorityHigh, CreatedAt: now, ExpiresAt: &past},
	)
	require.NoError(t, err)

	n, err := db.MarkRead(ctx, jane.ID, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.MarkRead(ctx, jane.ID, nil, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := db.NotificationStats(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Zero(t, stats.Unread)
	assert.Equal(t, 1, stats.ByType[notification.TypeSystemAlert])
}
