package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nerrad567/hydroponics-core/internal/auth"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
)

func newUserCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var passwordStdin bool
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account",
		Long: `Create an account that can log in with POST /token.

The password is prompted for without echo when stdin is a terminal. With
--password-stdin it is read from the first line of stdin instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwordStdin)
			if err != nil {
				return err
			}

			return withDatabase(opts, func(db *database.DB) error {
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				user, err := auth.CreateUser(cmd.Context(), auth.NewUserRepository(db.DB), args[0], password)
				if err != nil {
					return fmt.Errorf("creating user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
				return nil
			})
		},
	}
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")

	cmd.AddCommand(create)
	return cmd
}

// readPassword prompts twice on a terminal, or reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer, fromStdin bool) (string, error) {
	if f, ok := in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		first, err := promptHidden(f, prompt, "Password: ")
		if err != nil {
			return "", err
		}
		second, err := promptHidden(f, prompt, "Repeat password: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", errors.New("passwords do not match")
		}
		return first, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password given on stdin")
	}
	return password, nil
}

func promptHidden(f *os.File, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}
