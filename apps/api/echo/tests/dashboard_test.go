package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/dashboard"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	inmemdb "github.com/Gokulakrishnan610/chicken-dinner/storage/database/inmem"
)

func Test_dashboardApi(t *testing.T) {
	app := setup(t)
	hero := app.createUser(t, "hero", user.RoleStudent)
	prof := app.createUser(t, "prof", user.RoleFaculty)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	heroToken, profToken := app.getToken(t, hero), app.getToken(t, prof)

	rec := app.do(t, http.MethodGet, "/v1/dashboard", "", nil, nil)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	var ids []string
	for _, title := range []string{"Hackathon", "Debate"} {
		var ach achievement.Achievement
		rec := app.do(t, http.MethodPost, "/v1/achievements", heroToken, marchallObj(t, achievement.NewAchievement{
			CategoryID: inmemdb.LeadershipID, Title: title, Description: title + " description",
		}), &ach)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, ach.ID)
	}
	rec = app.do(t, http.MethodPost, "/v1/achievements/"+ids[0]+"/review", profToken,
		marchallObj(t, submission.Decision{Action: submission.ActionApprove}), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("student", func(t *testing.T) {
		var s dashboard.Summary
		rec := app.do(t, http.MethodGet, "/v1/dashboard", heroToken, nil, &s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, user.RoleStudent, s.Role)
		assert.Nil(t, s.Admin)
		assert.Nil(t, s.Faculty)
		require.NotNil(t, s.Student)
		assert.Equal(t, hero.ID, s.Student.Profile.UserID)
		assert.Equal(t, 1, s.Student.Profile.AchievementsCount)
		assert.Equal(t, 1, s.Student.UnreadNotifs)

		achs := s.Student.Submissions[submission.KindAchievement]
		assert.Equal(t, 2, achs.Total)
		assert.Equal(t, 1, achs.Approved)
		assert.Equal(t, 1, achs.Pending)
		assert.Zero(t, s.Student.Submissions[submission.KindCertificate].Total)
	})

	t.Run("faculty", func(t *testing.T) {
		var s dashboard.Summary
		rec := app.do(t, http.MethodGet, "/v1/dashboard", profToken, nil, &s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, user.RoleFaculty, s.Role)
		assert.Nil(t, s.Student)
		require.NotNil(t, s.Faculty)
		assert.Equal(t, 1, s.Faculty.Pending[submission.KindAchievement])
		assert.Equal(t, 0, s.Faculty.Pending[submission.KindVolunteering])
		assert.Equal(t, 1, s.Faculty.TotalPending)
		assert.Equal(t, 1, s.Faculty.ReviewsDone)
	})

	t.Run("admin", func(t *testing.T) {
		var s dashboard.Summary
		rec := app.do(t, http.MethodGet, "/v1/dashboard", app.getToken(t, admin), nil, &s)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, user.RoleAdmin, s.Role)
		require.NotNil(t, s.Admin)
		assert.Equal(t, 3, s.Admin.Users.Total)
		assert.Equal(t, 1, s.Admin.Users.Students)
		assert.Equal(t, 1, s.Admin.Users.Faculty)
		assert.Equal(t, 1, s.Admin.Users.Admins)
		assert.Equal(t, 1, s.Admin.Pending[submission.KindAchievement])
		assert.Equal(t, 2, s.Admin.Totals[submission.KindAchievement].Total)
	})
}
