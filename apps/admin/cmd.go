package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/koneum/eduwaly/core/permission"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrRepo    user.Repository
	usrSvc     *user.Service
	planSvc    *plan.Service
	permSvc    *permission.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command on the database, eg. up, down, status, up-to VERSION")
	fmt.Println("  seed - create or refresh the canonical plans and the default permission catalog")
	fmt.Println("  createsuperuser -username USERNAME -email EMAIL - create a platform operator")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
}

func (cli *commandLine) readPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	createSuperUserCmd := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	createSuperUserUname := createSuperUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	createSuperUserEmail := createSuperUserCmd.String("email", "", "The user's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "seed":
		return cli.seed(ctx)
	case "createsuperuser":
		if err := createSuperUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createSuperUserUname == "" && *createSuperUserEmail == "" {
			createSuperUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(createSuperUserCmd)
		if err != nil {
			return err
		}
		return cli.createSuperUser(ctx, *createSuperUserUname, *createSuperUserEmail, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}
