package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword    = errors.New("password cannot be empty")
	errPasswordMismatch = errors.New("passwords do not match")
	errNoDatabase       = errors.New("migrations need a postgres database")
)

// migrateFunc runs a goose command against the application database.
type migrateFunc func(command string, args ...string) error

type commandLine struct {
	usrSvc     *user.Service
	validate   *validator.Validate
	translator ut.Translator
	migrate    migrateFunc
	out        io.Writer
}

func newRootCmd(cli *commandLine) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "EduPortal administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
	)
	return root
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(confirm bool) (string, error) {
	read := func(prompt string) (string, error) {
		fmt.Fprint(cli.out, prompt)
		pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
		fmt.Fprintln(cli.out)
		if err != nil {
			return "", errors.Wrap(err, "reading password")
		}
		return string(pwd), nil
	}

	pwd, err := read("Enter password: ")
	if err != nil {
		return "", err
	}
	if pwd == "" {
		return "", errEmptyPassword
	}
	if confirm {
		again, err := read("Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != pwd {
			return "", errPasswordMismatch
		}
	}
	return pwd, nil
}

// describe turns validation errors into a single readable line.
func (cli *commandLine) describe(err error) error {
	var msgs []string
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, msg := range e.Translate(cli.translator) {
			msgs = append(msgs, msg)
		}
	case *core.ValidationError:
		for _, f := range e.Fields {
			msgs = append(msgs, f.Field+": "+f.Error)
		}
	}
	if len(msgs) == 0 {
		return err
	}
	sort.Strings(msgs)
	return errors.New("invalid input: " + strings.Join(msgs, "; "))
}
