package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

func TestCertificateService_NotifyExpiring(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	jane := createUser(t, db, "jane", user.RoleStudent)
	today := core.NewDate(time.Now())

	create := func(title string, status submission.Status, expiresIn *int) certificate.Certificate {
		c := certificate.Certificate{
			Submission: submission.Submission{
				Kind:       submission.KindCertificate,
				OwnerID:    jane.ID,
				CategoryID: CloudComputingID,
				Title:      title,
				Status:     status,
				Priority:   submission.PriorityMedium,
			},
			Issuer:    "Cloud Academy",
			IssueDate: today.AddDays(-300),
		}
		if expiresIn != nil {
			exp := today.AddDays(*expiresIn)
			c.ExpiryDate = &exp
		}
		c, err := db.CreateCertificate(ctx, c)
		require.NoError(t, err)
		return c
	}
	days := func(n int) *int { return &n }

	soon := create("Soon", submission.StatusApproved, days(10))
	create("Later", submission.StatusApproved, days(60))
	create("Pending", submission.StatusPending, days(5))
	create("Expired", submission.StatusApproved, days(-1))
	create("Forever", submission.StatusApproved, nil)

	notifSvc := notification.NewService(db, nil)
	svc := certificate.NewService(db, notifSvc, nil, nil)

	n, err := svc.NotifyExpiring(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := db.QueryNotifications(ctx, jane.ID, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeCertificate, list[0].Type)
	assert.Equal(t, notification.PriorityHigh, list[0].Priority)
	assert.Equal(t, "Certificate expiring soon", list[0].Title)
	assert.Equal(t, "/certificates/"+soon.ID, list[0].ActionURL)
	assert.Contains(t, list[0].Message, "(in 10 days)")

	// owners are warned once per certificate
	n, err = svc.NotifyExpiring(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	c, err := db.GetCertificate(ctx, soon.ID)
	require.NoError(t, err)
	assert.NotNil(t, c.ExpiryNotifiedAt)
}
