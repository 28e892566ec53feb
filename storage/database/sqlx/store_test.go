package sqlxrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

const (
	ownerID    = "6f1d2a4e-8b3c-4d5e-9f70-1a2b3c4d5e01"
	reviewerID = "6f1d2a4e-8b3c-4d5e-9f70-1a2b3c4d5e02"
	subID      = "6f1d2a4e-8b3c-4d5e-9f70-1a2b3c4d5e03"
	categoryID = "c2d4e6f8-1a3b-4c5d-9e7f-2b4d6f8a0c01"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func submissionRows(status submission.Status, points int, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "category_id", "title", "description", "status", "priority", "points", "tags", "is_public",
		"verified_by", "verified_at", "rejection_reason", "created_at", "updated_at", "user_name", "category_name",
		"likes_count", "comments_count",
	}).AddRow(
		subID, ownerID, categoryID, "Tutoring", "Maths tutoring", string(status), "medium", points, "{math}", true,
		reviewerID, at, "", at, at, "Jane Doe", "Education", 2, 1,
	)
}

func TestStore_ApplyTransition(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tr := submission.Transition{
		Action:     submission.ActionApprove,
		To:         submission.StatusApproved,
		ReviewerID: reviewerID,
		ReviewedAt: at,
	}

	t.Run("approval credits the owner in the same transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE volunteering_activities s SET status = $1")).
			WithArgs("approved", reviewerID, at, "", nil, subID).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "points", "hours"}).AddRow(ownerID, 9, 4.5))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
			WithArgs(ownerID, 0, 0, 4.5, 9, at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_reviews")).
			WithArgs(sqlmock.AnyArg(), "volunteering", subID, reviewerID, "approve", "", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM volunteering_activities s")).
			WithArgs(subID).
			WillReturnRows(submissionRows(submission.StatusApproved, 9, at))
		mock.ExpectCommit()

		sub, err := store.ApplyTransition(ctx, submission.KindVolunteering, subID, tr)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusApproved, sub.Status)
		assert.Equal(t, submission.KindVolunteering, sub.Kind)
		assert.Equal(t, 9, sub.Points)
		assert.Equal(t, []string{"math"}, sub.Tags)
		assert.Equal(t, "Jane Doe", sub.OwnerName)
		if assert.NotNil(t, sub.ReviewerID) {
			assert.Equal(t, reviewerID, *sub.ReviewerID)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection does not credit the owner", func(t *testing.T) {
		store, mock := newMockStore(t)
		rej := submission.Transition{
			Action:     submission.ActionReject,
			To:         submission.StatusRejected,
			ReviewerID: reviewerID,
			ReviewedAt: at,
			Reason:     "no evidence",
		}
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE achievements s SET status = $1")).
			WithArgs("rejected", reviewerID, at, "no evidence", nil, subID).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "points", "hours"}).AddRow(ownerID, 50, 0.0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_reviews")).
			WithArgs(sqlmock.AnyArg(), "achievement", subID, reviewerID, "reject", "no evidence", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM achievements s")).
			WithArgs(subID).
			WillReturnRows(submissionRows(submission.StatusRejected, 50, at))
		mock.ExpectCommit()

		sub, err := store.ApplyTransition(ctx, submission.KindAchievement, subID, rej)
		require.NoError(t, err)
		assert.Equal(t, submission.StatusRejected, sub.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already reviewed rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE certificates s SET status = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "points", "hours"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM certificates WHERE id = $1)")).
			WithArgs(subID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := store.ApplyTransition(ctx, submission.KindCertificate, subID, tr)
		assert.Equal(t, submission.ErrNotPending, errors.Cause(err))
		assert.True(t, core.IsInvalidState(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown submission rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE certificates s SET status = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "points", "hours"}))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WithArgs(subID).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectRollback()

		_, err := store.ApplyTransition(ctx, submission.KindCertificate, subID, tr)
		assert.Equal(t, submission.ErrNotFound, errors.Cause(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a failing credit rolls back the status change", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE achievements s SET status = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "points", "hours"}).AddRow(ownerID, 150, 0.0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
			WithArgs(ownerID, 1, 0, 0.0, 150, at).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := store.ApplyTransition(ctx, submission.KindAchievement, subID, tr)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id", func(t *testing.T) {
		store, mock := newMockStore(t)
		_, err := store.ApplyTransition(ctx, submission.KindAchievement, "42", tr)
		assert.Equal(t, submission.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown kind", func(t *testing.T) {
		store, _ := newMockStore(t)
		_, err := store.ApplyTransition(ctx, submission.Kind("badge"), subID, tr)
		assert.Equal(t, submission.ErrInvalidKind, errors.Cause(err))
	})
}

func TestStore_ToggleLike(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		inserted int64
		want     bool
	}{
		{name: "like", inserted: 1, want: true},
		{name: "unlike", inserted: 0, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_likes")+`.+ON CONFLICT \(kind, submission_id, user_id\) DO NOTHING`).
				WithArgs("achievement", subID, ownerID, at).
				WillReturnResult(sqlmock.NewResult(0, tc.inserted))
			if !tc.want {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submission_likes")).
					WithArgs("achievement", subID, ownerID).
					WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectCommit()

			liked, err := store.ToggleLike(ctx, submission.KindAchievement, subID, ownerID, at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, liked)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GetUserByID(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := store.GetUserByID(ctx, ownerID)
	assert.Equal(t, user.ErrNotFound, err)

	_, err = store.GetUserByID(ctx, "not-a-uuid")
	assert.Equal(t, user.ErrNotFound, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CheckUniqueness(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		taken [][2]string
		want  error
	}{
		{name: "free", want: nil},
		{name: "username taken", taken: [][2]string{{"jane", "other@example.com"}}, want: user.ErrUsernameExists},
		{name: "email taken", taken: [][2]string{{"other", "jane@example.com"}}, want: user.ErrEmailExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			rows := sqlmock.NewRows([]string{"username", "email"})
			for _, tk := range tc.taken {
				rows.AddRow(tk[0], tk[1])
			}
			mock.ExpectQuery(regexp.QuoteMeta("SELECT username, email FROM users")).
				WithArgs("jane", "jane@example.com", sqlmock.AnyArg()).
				WillReturnRows(rows)

			err := store.CheckUniqueness(ctx, "jane", "jane@example.com", ownerID)
			assert.Equal(t, tc.want, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_CreateNotifications(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	n := notification.Notification{
		UserID:    ownerID,
		Type:      notification.TypeSystemAlert,
		Title:     "Maintenance",
		Message:   "Tonight",
		Priority:  notification.PriorityLow,
		CreatedAt: now,
	}

	t.Run("unknown recipient rolls everything back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
			WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
		mock.ExpectRollback()

		other := n
		other.UserID = reviewerID
		_, err := store.CreateNotifications(ctx, n, other)
		assert.Equal(t, notification.ErrRecipientNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		created, err := store.CreateNotifications(ctx, n)
		require.NoError(t, err)
		if assert.Len(t, created, 1) {
			assert.NotEmpty(t, created[0].ID)
			assert.JSONEq(t, "{}", string(created[0].Metadata))
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_MarkRead(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE notifications SET is_read = true, read_at = $1 WHERE user_id::text = $2 AND NOT is_read")).
		WithArgs(at, ownerID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := store.MarkRead(ctx, ownerID, nil, at)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectExec(regexp.QuoteMeta("AND id::text = ANY($3) AND NOT is_read")).
		WithArgs(at, ownerID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err = store.MarkRead(ctx, ownerID, []string{subID}, at)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordDownload(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET download_count = download_count + 1")).
		WithArgs(subID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.RecordDownload(ctx, report.Access{
		ReportID:   subID,
		UserID:     ownerID,
		Action:     report.ActionDownload,
		AccessedAt: time.Now(),
	})
	assert.True(t, core.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
