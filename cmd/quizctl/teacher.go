package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const minPasswordLength = 6

func newCreateTeacherCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-teacher",
		Short: "Create a teacher account",
		Long: "Create a teacher account. The password is prompted for on a terminal;\n" +
			"when stdin is not a terminal the first line of stdin is used.",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if email == "" || name == "" {
				return errors.New("--email and --name are required")
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			if len(password) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters", minPasswordLength)
			}

			t, err := a.auth.CreateTeacher(cmd.Context(), strings.TrimSpace(email), strings.TrimSpace(name), password)
			if err != nil {
				if errors.Is(err, service.ErrConflict) {
					return fmt.Errorf("a teacher with email %s already exists", email)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Teacher '%s' (%s) created with ID: %d\n", t.Name, t.Email, t.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "teacher email (login)")
	cmd.Flags().StringVar(&name, "name", "", "teacher display name")
	return cmd
}

func newResetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for a teacher account",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			if len(password) < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters", minPasswordLength)
			}

			t, err := a.auth.ResetPassword(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					return fmt.Errorf("no teacher with email %s", email)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Password for '%s' (%s) updated\n", t.Name, t.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "teacher email (login)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), "Enter Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
