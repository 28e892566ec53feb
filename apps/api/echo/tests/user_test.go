package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/Gokulakrishnan610/chicken-dinner/apps/api/echo"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	"github.com/Gokulakrishnan610/chicken-dinner/tests"
)

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	path := func(search string, isActive *bool, roles ...user.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", string(r))
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	student := testutil.CreateUser(t, app.db, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	naughty := testutil.CreateUser(t, app.db, "N Dog", "ndog", "ndog@test.cd", "", user.RoleStudent, false) // 😂
	faculty := testutil.CreateUser(t, app.db, "Prof", "prof", "prof@test.cd", "", user.RoleFaculty, true)
	admin := testutil.CreateUser(t, app.db, "Admin", "admin", "admin@test.cd", "", user.RoleAdmin, true)

	adminToken := app.getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: app.getToken(t, faculty), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, student, naughty, faculty, admin)},
		{name: "search (unknown)", path: path("lol", nil), token: adminToken, wantData: empty},
		{name: "search=HER", path: path("HER", nil), token: adminToken, wantData: marchallList(t, student)},
		{name: "search=rof", path: path("rof", nil), token: adminToken, wantData: marchallList(t, faculty)},
		{name: "role (unknown)", path: path("", nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=faculty", path: path("", nil, user.RoleFaculty), token: adminToken, wantData: marchallList(t, faculty)},
		{
			name: "role=faculty,admin", path: path("", nil, user.RoleFaculty, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, faculty, admin),
		},
		{name: "is_active=false", path: path("", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "is_active=true", path: path("", bPtr(true)),
			token: adminToken, wantData: marchallList(t, student, faculty, admin),
		},
		{name: "all combo", path: path("o", bPtr(true), user.RoleStudent), token: adminToken, wantData: marchallList(t, student)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_register(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.db, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": reqMsg, "email": reqMsg, "first_name": reqMsg, "password": reqMsg, "password_confirm": reqMsg,
			}),
		},
		{
			name: "username taken", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Username: "HERO", Email: "new@test.cd", FirstName: "New", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
			wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "too common password", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewUser{
				Username: "newbie", Email: "new@test.cd", FirstName: "New", Password: "P@ssw0rd", PasswordConfirm: "P@ssw0rd",
			}),
			wantData: marchallObj(t, map[string]string{"password": "password is too common"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("registers a student whatever the role asked", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Username: "Newbie", Email: "new@test.cd", FirstName: "New", Role: user.RoleAdmin,
			Password: "LolC@t123", PasswordConfirm: "LolC@t123",
		})
		var got user.User
		rec := app.do(t, http.MethodPost, "/v1/users/register", "", body, &got)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "newbie", got.Username)
		assert.Equal(t, user.RoleStudent, got.Role)
		assert.True(t, got.IsActive)
	})
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, "hero", user.RoleStudent)
	testutil.CreateUser(t, app.db, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", user.RoleStudent, false)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for _, uname := range []string{"HERO", student.Email} {
		t.Run("logged in with "+uname, func(t *testing.T) {
			var resp echoapi.LoginResponse
			body := marchallObj(t, echoapi.LoginRequest{Username: uname, Password: "LolC@t123"})
			rec := app.do(t, http.MethodPost, "/v1/users/login", "", body, &resp)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, student.ID, resp.User.ID)
			assert.NotNil(t, resp.User.LastLogin)

			// the token works
			rec = app.do(t, http.MethodGet, "/v1/users/"+student.ID, resp.Token, nil, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)

	naughty := testutil.CreateUser(t, app.db, "N Dog", "ndog", "ndog@test.cd", "", user.RoleStudent, false) // 😂
	student := app.createUser(t, "hero", user.RoleStudent)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    app.conf.AppName,
			Subject:   student.ID,
			Audience:  "portal",
			ExpiresAt: now.Add(app.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * app.conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Username:     student.Username,
		Email:        student.Email,
		Role:         student.Role,
	}
	unrefreshableToken, err := echoapi.GenerateToken(app.conf, unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: app.getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: app.getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code)
				var respData echoapi.TokenResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &respData))
				assert.NotEmpty(t, respData.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, "hero", user.RoleStudent)

	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	t.Run("unknown email sends nothing", func(t *testing.T) {
		app.mailSvc.ClearMessages()
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.cd"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)
		assert.Empty(t, app.mailSvc.SentMessages())
	})

	t.Run("invalid email", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		}, rec)
	})

	// known email: the link to reset the password is sent
	app.mailSvc.ClearMessages()
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, echoapi.PasswordResetRequest{Email: "HERO@test.cd"}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successData}, rec)

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, student.Email, sent[0].To[0].Address)
	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Equal(t, user.EncodeUID(student), uid)
	assert.Contains(t, sent[0].TextContent, uid)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: reqMsg, PasswordConfirm: reqMsg}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: "N3wC@t456", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: "bG9s", Password: "N3wC@t456", PasswordConfirm: "N3wC@t456"}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: uid, Password: "N3wC@t456", PasswordConfirm: "N3wC@t456"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid token"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: "N3wC@t456", PasswordConfirm: "N3wC@t456"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token cannot be reused", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: token, UID: uid, Password: "N3wD0g!789", PasswordConfirm: "N3wD0g!789"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid token"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	rec = app.do(t, http.MethodPost, "/v1/users/login", "", marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "N3wC@t456"}), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_userApi_changePassword(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, "hero", user.RoleStudent)
	token := app.getToken(t, student)

	tests := []httpTest{
		{
			name: "wrong old password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangeUserPassword{OldPassword: "lol", Password: "N3wC@t456", PasswordConfirm: "N3wC@t456"}),
			wantData: marchallObj(t, map[string]string{"old_password": "wrong password"}),
		},
		{
			name: "password too short", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangeUserPassword{OldPassword: "LolC@t123", Password: "N3w@", PasswordConfirm: "N3w@"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "changed", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ChangeUserPassword{OldPassword: "LolC@t123", Password: "N3wC@t456", PasswordConfirm: "N3wC@t456"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been changed."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/change-password", token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	student := app.createUser(t, "hero", user.RoleStudent)
	other := app.createUser(t, "other", user.RoleStudent)
	faculty := app.createUser(t, "prof", user.RoleFaculty)
	admin := app.createUser(t, "admin", user.RoleAdmin)

	studentToken := app.getToken(t, student)
	adminToken := app.getToken(t, admin)
	notFound := marchallObj(t, httpErr{Error: "not found"})
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "get self", method: http.MethodGet, path: "/v1/users/" + student.ID, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{name: "get other user", method: http.MethodGet, path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "faculty cannot get others", method: http.MethodGet, path: "/v1/users/" + other.ID, token: app.getToken(t, faculty), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin gets anyone", method: http.MethodGet, path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, other)},
		{name: "admin: unknown user", method: http.MethodGet, path: "/v1/users/lol", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "student cannot change own role", method: http.MethodPut, path: "/v1/users/" + student.ID, token: studentToken,
			body: marchallObj(t, user.UpdateUser{Role: user.RoleAdmin}), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "student cannot delete", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: studentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "admin cannot delete self (bulk)", method: http.MethodDelete, path: "/v1/users?id=" + other.ID + "&id=" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("student updates own name", func(t *testing.T) {
		var got user.User
		rec := app.do(t, http.MethodPut, "/v1/users/"+student.ID, studentToken, marchallObj(t, user.UpdateUser{FirstName: "  Super  ", LastName: "Hero"}), &got)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Super", got.FirstName)
		assert.Equal(t, "Hero", got.LastName)
		assert.Equal(t, student.Username, got.Username)
	})

	t.Run("admin deactivates a user", func(t *testing.T) {
		var got user.User
		rec := app.do(t, http.MethodPut, "/v1/users/"+other.ID, adminToken, []byte(`{"is_active": false}`), &got)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.False(t, got.IsActive)

		// their token is no longer accepted
		rec = app.do(t, http.MethodGet, "/v1/users/"+other.ID, app.getToken(t, other), nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin deletes a user", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/v1/users/"+other.ID, adminToken, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(t, http.MethodGet, "/v1/users/"+other.ID, adminToken, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_userApi_adminCreate(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	faculty := app.createUser(t, "prof", user.RoleFaculty)

	body := marchallObj(t, user.NewUser{
		Username: "dean", Email: "dean@test.cd", FirstName: "Dean", Role: user.RoleFaculty,
		Password: "LolC@t123", PasswordConfirm: "LolC@t123",
	})

	rec := app.do(t, http.MethodPost, "/v1/users", app.getToken(t, faculty), body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var got user.User
	rec = app.do(t, http.MethodPost, "/v1/users", app.getToken(t, admin), body, &got)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, user.RoleFaculty, got.Role)

	var roles []user.RoleInfo
	rec = app.do(t, http.MethodGet, "/v1/users/roles", app.getToken(t, admin), nil, &roles)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, roles, 3)

	var stats user.Stats
	rec = app.do(t, http.MethodGet, "/v1/users/stats", app.getToken(t, admin), nil, &stats)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.Stats{Total: 3, Active: 3, Faculty: 2, Admins: 1, NewThisMonth: 3}, stats)
}
