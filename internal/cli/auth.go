package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/webstorage/storectl/internal/constants"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/models"
	"github.com/webstorage/storectl/internal/workspace"
)

var errPasswordMismatch = errors.New("passwords do not match")

// readCredentials prompts for whatever is missing. confirm asks for the
// password twice, as signup does.
func readCredentials(p *prompter, username string, confirm bool) (models.Credentials, error) {
	var err error
	if username == "" {
		if username, err = p.required("Username: "); err != nil {
			return models.Credentials{}, err
		}
	}
	password, err := p.password("Password: ")
	if err != nil {
		return models.Credentials{}, err
	}
	if confirm {
		again, err := p.password("Repeat password: ")
		if err != nil {
			return models.Credentials{}, err
		}
		if again != password {
			return models.Credentials{}, errPasswordMismatch
		}
	}
	return models.Credentials{Username: username, Password: password}, nil
}

// login exchanges creds for a session and reports the outcome on out.
func login(ctx context.Context, ws *workspace.Workspace, creds models.Credentials, out io.Writer) error {
	resp, err := ws.Login(ctx, creds)
	if err != nil {
		return errors.New(apihttp.UserMessage(err, "login failed"))
	}
	fmt.Fprintf(out, "Logged in as %s\n", creds.Username)
	if resp.Expire != "" {
		if exp, perr := time.Parse(time.RFC3339, resp.Expire); perr == nil {
			fmt.Fprintf(out, "Session expires %s\n", humanize.Time(exp))
		}
	}
	return nil
}

func newLoginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Long: `Log in with a username and password. The returned token is stored in
the session file and sent with every later command until logout or until the
server rejects it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			creds, err := readCredentials(p, username, false)
			if err != nil {
				return err
			}
			return login(cmd.Context(), a.ws, creds, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			creds, err := readCredentials(p, username, true)
			if err != nil {
				return err
			}
			message, err := a.ws.Signup(cmd.Context(), creds)
			if err != nil {
				return errors.New(apihttp.UserMessage(err, "signup failed"))
			}
			if message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created. Continue with '%s login -u %s'\n", constants.AppName, creds.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ws.Logout(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account and when the session expires",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireLogin(); err != nil {
				return err
			}
			printWhoami(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func printWhoami(out io.Writer, a *app) {
	fmt.Fprintf(out, "Server:  %s\n", a.cfg.ServerURL)
	claims, err := a.ws.Session().Claims()
	if err != nil {
		// Opaque tokens are still valid sessions; the server decides.
		fmt.Fprintln(out, "Session: active (token details unavailable)")
		return
	}
	fmt.Fprintf(out, "User ID: %d\n", claims.UserID)
	if claims.ExpiresAt.IsZero() {
		return
	}
	state := "expires"
	if claims.Expired(time.Now()) {
		state = "expired"
	}
	fmt.Fprintf(out, "Session: %s %s (%s)\n", state, humanize.Time(claims.ExpiresAt), claims.ExpiresAt.Format(time.RFC1123))
}
