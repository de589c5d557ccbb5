// Command ua is a CLI client for the userauth HTTP API.
package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	addr    string
	timeout time.Duration
}

func (g *globals) anon() *client { return newClient(g.addr, "", g.timeout) }

func (g *globals) authed() (*client, error) {
	tok, err := loadToken()
	if err != nil {
		return nil, err
	}
	return newClient(g.addr, tok, g.timeout), nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "ua",
		Short:         "userauth CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.addr, "addr", envOr("USERAUTH_ADDR", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newVersionCmd(),
		newRegisterCmd(g),
		newLoginCmd(g),
		newLogoutCmd(),
		newProfileCmd(g),
		newPasswdCmd(g),
		newGetCmd(g),
		newListCmd(g),
		newUpdateCmd(g),
		newRmCmd(g),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ua %s (%s)\n", version, buildDate)
		},
	}
}

func newRegisterCmd(g *globals) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := secretArg(password)
			if err != nil {
				return err
			}
			var out map[string]any
			in := map[string]string{"name": name, "email": email, "password": pw}
			if err := g.anon().do(cmd.Context(), http.MethodPost, "/register", in, &out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", `password ("-" reads stdin)`)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(g *globals) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := secretArg(password)
			if err != nil {
				return err
			}
			var out struct {
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expires_at"`
				UserID    string    `json:"user_id"`
			}
			in := map[string]string{"email": email, "password": pw}
			if err := g.anon().do(cmd.Context(), http.MethodPost, "/login", in, &out); err != nil {
				return err
			}
			if err := saveToken(tokenFile{AccessToken: out.Token, ExpiresAt: out.ExpiresAt, UserID: out.UserID}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", `password ("-" reads stdin)`)
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		Args:  cobra.NoArgs,
		RunE:  func(*cobra.Command, []string) error { return clearToken() },
	}
}

// authedJSON runs a request with the saved token and prints the response.
func authedJSON(g *globals, cmd *cobra.Command, method, path string, in any) error {
	c, err := g.authed()
	if err != nil {
		return err
	}
	var out any
	if err := c.do(cmd.Context(), method, path, in, &out); err != nil {
		return err
	}
	if out != nil {
		printJSON(cmd.OutOrStdout(), out)
	}
	return nil
}

func newProfileCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the authenticated identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return authedJSON(g, cmd, http.MethodGet, "/profile", nil)
		},
	}
}

func newPasswdCmd(g *globals) *cobra.Command {
	var email, current, next string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cur, err := secretArg(current)
			if err != nil {
				return err
			}
			in := map[string]string{"email": email, "password": cur, "newPassword": next}
			return authedJSON(g, cmd, http.MethodPost, "/change-password", in)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&current, "password", "p", "", `current password ("-" reads stdin)`)
	cmd.Flags().StringVar(&next, "new", "", "new password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func newGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return authedJSON(g, cmd, http.MethodGet, "/users/"+url.PathEscape(args[0]), nil)
		},
	}
}

func newListCmd(g *globals) *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if page > 0 {
				q.Set("page", strconv.Itoa(page))
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/users"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			return authedJSON(g, cmd, http.MethodGet, path, nil)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number (from 1)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (1-100)")
	return cmd
}

func newRmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := authedJSON(g, cmd, http.MethodDelete, "/users/"+url.PathEscape(args[0]), nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}

func newUpdateCmd(g *globals) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a user's name and email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := map[string]string{"name": name, "email": email}
			return authedJSON(g, cmd, http.MethodPut, "/users/"+url.PathEscape(args[0]), in)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "new display name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "new email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
