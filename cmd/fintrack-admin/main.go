// Command fintrack-admin creates administrator accounts.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fintrack-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Administrator email")
	name := fs.String("name", "Administrator", "Display name")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	check := fs.Bool("check", false, "Verify the credentials of an existing account instead of creating one")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stdout, "Usage: fintrack-admin -email <email> [-name <name>] [-password <password>] [-check]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flag: email")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger("warn", applog.ComponentAdmin)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	app := cli.InitApp(ctx, logger, cfg)
	defer app.Close()

	if *check {
		u, err := app.Users.Authenticate(ctx, *email, password)
		if err != nil {
			return fmt.Errorf("credentials rejected: %w", err)
		}
		color.New(color.FgGreen).Fprintf(stdout, "Credentials OK")
		fmt.Fprintf(stdout, " for %s (role %s)\n", u.Email, u.Role)
		return nil
	}

	u, err := app.Users.CreateAdmin(ctx, core.RegisterInput{Email: *email, Name: *name, Password: password})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	color.New(color.FgGreen).Fprintf(stdout, "Admin %s created", u.Email)
	fmt.Fprintf(stdout, " with ID %s\n", u.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
