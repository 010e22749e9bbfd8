package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/reminder"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB // nil with the inmem engine
	profiles  *profile.Service
	reminders *reminder.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, ...)")
	fmt.Println("  addprofile -email EMAIL -first FIRST -last LAST [-role coach|student] - create a profile; the password is prompted")
	fmt.Println("  resetpassword -email EMAIL - reset a profile's password; the password is prompted")
	fmt.Println("  setactive -email EMAIL [-active=false] - activate or deactivate a profile")
	fmt.Println("  reminders generate|dispatch - run one reminder pass")
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	out := cli.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

// promptPassword reads a password without echoing it. An empty password is a usage error.
func promptPassword(fs *flag.FlagSet) (string, error) {
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

	addProfileCmd := flag.NewFlagSet("addprofile", flag.ContinueOnError)
	addProfileEmail := addProfileCmd.String("email", "", "The profile's email.")
	addProfileFirst := addProfileCmd.String("first", "", "The profile's first name.")
	addProfileLast := addProfileCmd.String("last", "", "The profile's last name.")
	addProfileRole := addProfileCmd.String("role", "coach", "coach or student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The profile's email. The password will be prompted next.")

	setActiveCmd := flag.NewFlagSet("setactive", flag.ContinueOnError)
	setActiveEmail := setActiveCmd.String("email", "", "The profile's email.")
	setActiveValue := setActiveCmd.Bool("active", true, "Whether the profile may sign in.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "addprofile":
		if err := addProfileCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addProfileEmail == "" || *addProfileFirst == "" || *addProfileLast == "" {
			addProfileCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addProfileCmd)
		if err != nil {
			return err
		}
		return cli.addProfile(ctx, *addProfileEmail, *addProfileFirst, *addProfileLast, *addProfileRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "setactive":
		if err := setActiveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setActiveEmail == "" {
			setActiveCmd.Usage()
			return errHelp
		}
		return cli.setActive(ctx, *setActiveEmail, *setActiveValue)

	case "reminders":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.runReminders(ctx, args[2])

	default:
		cli.printUsage()
		return errHelp
	}
}
