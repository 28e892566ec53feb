package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		nu   user.NewUser
		role string
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the role and password of an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := user.ParseRole(role)
			if err != nil {
				return err
			}
			nu.Role = r
			pwd, err := cli.promptPassword(true)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), nu, pwd)
			if err != nil {
				return cli.describe(err)
			}
			fmt.Fprintf(cli.out, "user %q saved with role %s\n", usr.Username, usr.Role)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&nu.Username, "username", "u", "", "the user's username")
	flags.StringVarP(&nu.Email, "email", "e", "", "the user's email")
	flags.StringVar(&nu.FirstName, "first-name", "", "defaults to the username")
	flags.StringVar(&nu.LastName, "last-name", "", "")
	flags.StringVar(&nu.Department, "department", "", "")
	flags.StringVar(&role, "role", string(user.RoleAdmin), "one of student, faculty or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user. Existing users are reactivated.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser, pwd string) (user.User, error) {
	usr, err := cli.findUser(ctx, nu.Username, nu.Email)
	switch {
	case err == nil:
		active := true
		uu := user.UpdateUser{
			FirstName:       nu.FirstName,
			LastName:        nu.LastName,
			Department:      nu.Department,
			Role:            nu.Role,
			IsActive:        &active,
			Password:        pwd,
			PasswordConfirm: pwd,
		}
		if err = uu.Validate(usr, cli.validate, cli.usrSvc); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Update(ctx, usr, uu)

	case errors.Cause(err) == user.ErrNotFound:
		if nu.FirstName == "" {
			nu.FirstName = core.CleanString(nu.Username, true /* lower */)
		}
		nu.Password, nu.PasswordConfirm = pwd, pwd
		if err = nu.Validate(cli.validate, cli.usrSvc); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, nu)

	default:
		return user.User{}, err
	}
}

func (cli *commandLine) findUser(ctx context.Context, unames ...string) (user.User, error) {
	for _, uname := range unames {
		if uname == "" {
			continue
		}
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
		if errors.Cause(err) == user.ErrNotFound {
			continue
		}
		return usr, err
	}
	return user.User{}, user.ErrNotFound
}
