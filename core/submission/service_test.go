package submission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

func newValidate() *validator.Validate {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

// stubStore only implements the single-submission part of Store.
type stubStore struct {
	Store
	mu          sync.Mutex
	sub         Submission
	transitions int
}

func (s *stubStore) ApplyTransition(_ context.Context, kind Kind, id string, tr Transition) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.sub.ID || kind != s.sub.Kind {
		return Submission{}, ErrNotFound
	}
	if s.sub.Status != StatusPending {
		return Submission{}, ErrNotPending
	}
	s.transitions++
	s.sub.Status = tr.To
	s.sub.ReviewerID = &tr.ReviewerID
	s.sub.ReviewedAt = &tr.ReviewedAt
	s.sub.RejectionReason = tr.Reason
	if tr.Points != nil {
		s.sub.Points = *tr.Points
	}
	return s.sub, nil
}

func (s *stubStore) GetSubmission(_ context.Context, kind Kind, id string) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.sub.ID || kind != s.sub.Kind {
		return Submission{}, ErrNotFound
	}
	return s.sub, nil
}

type stubNotifier struct {
	sent []notification.Notification
	err  error
}

func (n *stubNotifier) Notify(_ context.Context, notif notification.Notification) (notification.Notification, error) {
	if n.err != nil {
		return notification.Notification{}, n.err
	}
	n.sent = append(n.sent, notif)
	return notif, nil
}

type stubRecorder struct{ observed []string }

func (r *stubRecorder) ObserveReview(kind, action string) {
	r.observed = append(r.observed, kind+":"+action)
}

type nopLogger struct{ errors int }

func (l *nopLogger) Debug(string, ...interface{}) {}
func (l *nopLogger) Info(string, ...interface{})  {}
func (l *nopLogger) Warn(string, ...interface{})  {}
func (l *nopLogger) Error(string, ...interface{}) { l.errors++ }
func (l *nopLogger) Fatal(string, ...interface{}) {}

func pendingSubmission() Submission {
	return Submission{
		ID:      "a1",
		Kind:    KindAchievement,
		OwnerID: student.ID,
		Title:   "Hackathon winner",
		Status:  StatusPending,
		Points:  30,
	}
}

func intPtr(i int) *int { return &i }

func TestServiceReview(t *testing.T) {
	tests := []struct {
		name       string
		actor      string
		id         string
		decision   Decision
		wantErr    error
		wantErrFn  func(error) bool
		wantStatus Status
		wantPoints int
	}{
		{
			name:      "invalid action",
			actor:     "faculty",
			id:        "a1",
			decision:  Decision{Action: "maybe"},
			wantErrFn: func(err error) bool { _, ok := errors.Cause(err).(validator.ValidationErrors); return ok },
		},
		{name: "student reject without reason", actor: "student", id: "a1", decision: Decision{Action: ActionReject}, wantErr: errReasonNeeded},
		{name: "faculty reject without reason", actor: "faculty", id: "a1", decision: Decision{Action: ActionReject, RejectionReason: "  "}, wantErr: errReasonNeeded},
		{name: "admin reject without reason", actor: "admin", id: "a1", decision: Decision{Action: ActionReject}, wantErr: errReasonNeeded},
		{name: "student approve", actor: "student", id: "a1", decision: Decision{Action: ActionApprove}, wantErr: errCannotReview},
		{name: "unknown role approve", actor: "ghost", id: "a1", decision: Decision{Action: ActionApprove}, wantErr: errCannotReview},
		{name: "unknown submission", actor: "faculty", id: "nope", decision: Decision{Action: ActionApprove}, wantErr: ErrNotFound},
		{
			name:       "faculty approves",
			actor:      "faculty",
			id:         "a1",
			decision:   Decision{Action: ActionApprove},
			wantStatus: StatusApproved,
			wantPoints: 30,
		},
		{
			name:       "admin approves with points",
			actor:      "admin",
			id:         "a1",
			decision:   Decision{Action: ActionApprove, Points: intPtr(50)},
			wantStatus: StatusApproved,
			wantPoints: 50,
		},
		{
			name:       "faculty rejects",
			actor:      "faculty",
			id:         "a1",
			decision:   Decision{Action: ActionReject, RejectionReason: "missing evidence", Points: intPtr(99)},
			wantStatus: StatusRejected,
			wantPoints: 30,
		},
	}

	actors := map[string]user.User{
		"student": student, "faculty": faculty, "admin": admin,
		"ghost": {ID: "u-ghost", Role: "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{sub: pendingSubmission()}
			notifier := new(stubNotifier)
			recorder := new(stubRecorder)
			svc := NewService(store, notifier, recorder, newValidate(), new(nopLogger))

			actor := actors[tt.actor]
			sub, err := svc.Review(context.Background(), actor, KindAchievement, tt.id, tt.decision)

			switch {
			case tt.wantErrFn != nil:
				assert.True(t, tt.wantErrFn(err), "unexpected error: %v", err)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, sub.Status)
				assert.Equal(t, tt.wantPoints, sub.Points)
				require.NotNil(t, sub.ReviewerID)
				assert.Equal(t, actor.ID, *sub.ReviewerID)
				assert.NotNil(t, sub.ReviewedAt)
				require.Len(t, notifier.sent, 1)
				assert.Equal(t, student.ID, notifier.sent[0].UserID)
				assert.Equal(t, notification.TypeAchievement, notifier.sent[0].Type)
				assert.Equal(t, "/achievements/a1", notifier.sent[0].ActionURL)
				assert.Equal(t, []string{"achievement:" + string(tt.decision.Action)}, recorder.observed)
				return
			}
			// a failed review changes nothing
			assert.Equal(t, 0, store.transitions)
			assert.Equal(t, StatusPending, store.sub.Status)
			assert.Empty(t, notifier.sent)
			assert.Empty(t, recorder.observed)
		})
	}
}

func TestServiceReviewTwice(t *testing.T) {
	store := &stubStore{sub: pendingSubmission()}
	svc := NewService(store, nil, nil, newValidate(), nil)

	_, err := svc.Review(context.Background(), faculty, KindAchievement, "a1", Decision{Action: ActionApprove})
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), admin, KindAchievement, "a1", Decision{Action: ActionReject, RejectionReason: "late"})
	assert.True(t, core.IsInvalidState(err))
	assert.Equal(t, 1, store.transitions)
	assert.Equal(t, StatusApproved, store.sub.Status)
}

func TestServiceReviewNotifierFailure(t *testing.T) {
	store := &stubStore{sub: pendingSubmission()}
	logger := new(nopLogger)
	svc := NewService(store, &stubNotifier{err: errors.New("boom")}, nil, newValidate(), logger)

	sub, err := svc.Review(context.Background(), faculty, KindAchievement, "a1", Decision{Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, sub.Status)
	assert.Equal(t, 1, logger.errors)
}

func TestServiceGetHidesInvisible(t *testing.T) {
	store := &stubStore{sub: pendingSubmission()}
	svc := NewService(store, nil, nil, newValidate(), nil)
	svc.nowFunc = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	_, err := svc.Get(context.Background(), other, KindAchievement, "a1")
	assert.Equal(t, ErrNotFound, err)

	sub, err := svc.Get(context.Background(), student, KindAchievement, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", sub.ID)

	_, err = svc.Reviews(context.Background(), other, KindAchievement, "a1")
	assert.Equal(t, ErrNotFound, err)
}

func TestCreditFor(t *testing.T) {
	assert.Equal(t, 1, CreditFor(KindAchievement, 10, 5).Achievements)
	assert.Equal(t, 0.0, CreditFor(KindAchievement, 10, 5).Hours)
	assert.Equal(t, 1, CreditFor(KindCertificate, 25, 0).Certificates)
	assert.Equal(t, 25, CreditFor(KindCertificate, 25, 0).Points)
	assert.Equal(t, 7.5, CreditFor(KindVolunteering, 15, 7.5).Hours)
	assert.Equal(t, 0, CreditFor(KindVolunteering, 15, 7.5).Achievements)
	assert.True(t, CreditFor("bogus", 15, 7.5).IsZero())
}
