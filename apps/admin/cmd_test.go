package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
	appfs "github.com/Gokulakrishnan610/chicken-dinner/fs"
	emailsvc "github.com/Gokulakrishnan610/chicken-dinner/services/email"
	inmemdb "github.com/Gokulakrishnan610/chicken-dinner/storage/database/inmem"
	"github.com/Gokulakrishnan610/chicken-dinner/tests"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type migration struct {
	command string
	args    []string
}

type testCLI struct {
	cli        *commandLine
	db         *inmemdb.DB
	out        *bytes.Buffer
	migrations []migration
}

func setup(t *testing.T) *testCLI {
	conf := core.NewTestConfig()
	logger := nopLogger{}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords, logger)

	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	require.NoError(t, err)

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, tmpls, logger)

	app := &testCLI{db: db, out: new(bytes.Buffer)}
	app.cli = &commandLine{
		usrSvc:     user.NewService(db, profile.NewService(db, validate), mailSvc, validate, conf, logger),
		validate:   validate,
		translator: translator,
		migrate: func(command string, args ...string) error {
			app.migrations = append(app.migrations, migration{command: command, args: args})
			return nil
		},
		out: app.out,
	}
	return app
}

// exec runs the command line with `args`, typing `passwords` at each prompt.
func (app *testCLI) exec(passwords []string, args ...string) error {
	readPasswordFunc = func(int) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, nil
		}
		pwd := passwords[0]
		passwords = passwords[1:]
		return []byte(pwd), nil
	}

	cmd := newRootCmd(app.cli)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func Test_commandLine_migrate(t *testing.T) {
	app := setup(t)

	err := app.exec(nil, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
	assert.Empty(t, app.migrations)

	require.NoError(t, app.exec(nil, "migrate", "up"))
	require.NoError(t, app.exec(nil, "migrate", "down-to", "3"))
	assert.Equal(t, []migration{
		{command: "up", args: []string{}},
		{command: "down-to", args: []string{"3"}},
	}, app.migrations)

	app.cli.migrate = func(string, ...string) error { return errNoDatabase }
	assert.Equal(t, errNoDatabase, app.exec(nil, "migrate", "status"))
}

func Test_commandLine_unknownCommand(t *testing.T) {
	app := setup(t)
	err := app.exec(nil, "lol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "lol"`)
}

func Test_commandLine_addUser(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	pwd := "N3wC@t456"

	t.Run("username and email are required", func(t *testing.T) {
		err := app.exec(nil, "adduser", "--username", "root")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `required flag(s) "email" not set`)
	})

	t.Run("invalid role", func(t *testing.T) {
		err := app.exec([]string{pwd, pwd}, "adduser", "-u", "root", "-e", "root@test.cd", "--role", "dean")
		assert.Equal(t, user.ErrInvalidRole, errors.Cause(err))
	})

	t.Run("empty password", func(t *testing.T) {
		err := app.exec(nil, "adduser", "-u", "root", "-e", "root@test.cd")
		assert.Equal(t, errEmptyPassword, err)
	})

	t.Run("passwords mismatch", func(t *testing.T) {
		err := app.exec([]string{pwd, "lol"}, "adduser", "-u", "root", "-e", "root@test.cd")
		assert.Equal(t, errPasswordMismatch, err)
	})

	t.Run("weak password", func(t *testing.T) {
		err := app.exec([]string{"lol", "lol"}, "adduser", "-u", "root", "-e", "root@test.cd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid input: ")
		_, err = app.cli.usrSvc.GetByUsernameOrEmail(ctx, "root")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("create", func(t *testing.T) {
		app.out.Reset()
		require.NoError(t, app.exec([]string{pwd, pwd}, "adduser", "-u", " Root ", "-e", "ROOT@test.cd"))
		assert.Contains(t, app.out.String(), `user "root" saved with role admin`)

		usr, err := app.cli.usrSvc.GetByUsernameOrEmail(ctx, "root@test.cd")
		require.NoError(t, err)
		assert.Equal(t, "root", usr.Username)
		assert.Equal(t, "root", usr.FirstName)
		assert.Equal(t, user.RoleAdmin, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword(pwd))
	})

	t.Run("update an existing user", func(t *testing.T) {
		hero := testutil.CreateUser(t, app.db, "Hero", "hero", "hero@test.cd", "LolC@t123", user.RoleStudent, false)

		require.NoError(t, app.exec([]string{pwd, pwd}, "adduser", "-u", "someone", "-e", "hero@test.cd", "--role", "faculty"))

		usr, err := app.cli.usrSvc.GetByID(ctx, hero.ID)
		require.NoError(t, err)
		assert.Equal(t, "hero", usr.Username)
		assert.Equal(t, "Hero", usr.FirstName)
		assert.Equal(t, user.RoleFaculty, usr.Role)
		assert.True(t, usr.IsActive)
		assert.NoError(t, usr.CheckPassword(pwd))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, app.db, "User", "awe", "awe@test.cd", "LolC@t123", user.RoleStudent, true)

	tests := []struct {
		name      string
		args      []string
		passwords []string
		wantErr   error
		wantStr   string
	}{
		{name: "username required", args: []string{"resetpassword"}, wantStr: `required flag(s) "username" not set`},
		{name: "no password", args: []string{"resetpassword", "-u", usr.Username}, wantErr: errEmptyPassword},
		{name: "user not found", args: []string{"resetpassword", "-u", "lol"}, passwords: []string{"N3wC@t456", "N3wC@t456"}, wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-u", usr.Username}, passwords: []string{"12345678", "12345678"}, wantStr: "invalid input: "},
		{name: "reset with username", args: []string{"resetpassword", "-u", usr.Username}, passwords: []string{"N3wC@t456", "N3wC@t456"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@test.cd"}, passwords: []string{"Fr3shC@t789", "Fr3shC@t789"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := app.cli.usrSvc.GetByID(ctx, usr.ID)
			require.NoError(t, err)

			err = app.exec(tt.passwords, tt.args...)

			after, gErr := app.cli.usrSvc.GetByID(ctx, usr.ID)
			require.NoError(t, gErr)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantStr)
			default:
				require.NoError(t, err)
				assert.NoError(t, after.CheckPassword(tt.passwords[0]))
				return
			}
			assert.Equal(t, before.PasswordHash, after.PasswordHash)
		})
	}
}
