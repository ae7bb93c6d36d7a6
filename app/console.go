package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/client"
	"github.com/GoPowerDNS-Admin/GoIdentity-Admin/internal/config"
)

// EnvPassword is read by login when --password is not given.
const EnvPassword = config.EnvPrefix + "_PASSWORD"

// MsgInsecureServer warns about a plain http console url. Outside dev mode the
// console marks its cookies Secure and they are never sent back over http.
const MsgInsecureServer = "warning: %s is not https, the session only works with a console in dev mode"

// ErrNoPassword is returned by login without a password.
var ErrNoPassword = errors.New("password required, use --password or " + EnvPassword)

func init() { //nolint: gochecknoinits
	for _, cmd := range []*cobra.Command{loginCmd, logoutCmd, whoamiCmd, usersCmd} {
		cmd.Flags().StringVar(&consoleURL, "server", "",
			"Console url (default Webserver.URL of the configuration), https unless the console runs in dev mode")
		cmd.Flags().StringVar(&jarPath, "jar", "", "Cookie file (default ~/.go-identity-admin/cookies.json)")
		rootCmd.AddCommand(cmd)
	}

	loginCmd.Flags().StringVar(&email, "email", "", "Email of the account")
	loginCmd.Flags().StringVar(&password, "password", "", "Password of the account")
	loginCmd.Flags().StringVar(&tenant, "tenant", "", "Tenant (default Upstream.DefaultTenant)")
	_ = loginCmd.MarkFlagRequired("email")

	usersCmd.Flags().StringToStringVarP(&usersQuery, "query", "q", nil, "Query parameters passed to the backend, e.g. -q page=2")
}

var (
	consoleURL string
	jarPath    string
	email      string
	password   string
	tenant     string
	usersQuery map[string]string
)

// consoleSession is a client of a running console with its persisted cookies.
type consoleSession struct {
	client *client.Client
	jar    *client.FileJar
}

func newConsoleSession(cmd *cobra.Command) (*consoleSession, error) {
	c, err := config.ReadConfig(configPath)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	server := consoleURL
	if server == "" {
		server = c.Webserver.URL
	}

	path := jarPath
	if path == "" {
		if path, err = client.DefaultJarPath(); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	base, err := client.New(client.Config{BaseURL: server})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	jar, err := client.NewFileJar(path, base.BaseURL())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	errOut := cmd.ErrOrStderr()

	if base.BaseURL().Scheme == "http" {
		_, _ = fmt.Fprintf(errOut, MsgInsecureServer+"\n", server)
	}

	cl, err := client.New(client.Config{
		BaseURL:     server,
		Tenant:      c.Upstream.DefaultTenant,
		Jar:         jar,
		ExpiryDelay: client.ExpireImmediately,
		OnSessionExpired: func(redirect string) {
			_, _ = fmt.Fprintf(errOut, "session expired, sign in again (%s)\n", redirect)
		},
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &consoleSession{client: cl, jar: jar}, nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode output")
	}

	_, err = fmt.Fprintln(w, string(out))

	return errors.Wrap(err, "write output")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a running console and store the session cookies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newConsoleSession(cmd)
		if err != nil {
			return err
		}

		if password == "" {
			password = os.Getenv(EnvPassword)
		}

		if password == "" {
			return ErrNoPassword
		}

		err = s.client.Login(contextOf(cmd), client.LoginRequest{
			Email:    strings.TrimSpace(email),
			Password: password,
			Tenant:   tenant,
		})
		if err != nil {
			return err //nolint:wrapcheck
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (tenant %s)\n", email, s.client.Tenant())

		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and delete the stored session cookies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newConsoleSession(cmd)
		if err != nil {
			return err
		}

		// the local cookies go away even when the console is unreachable
		logoutErr := s.client.Logout(contextOf(cmd))

		if err = s.jar.Clear(); err != nil {
			return err //nolint:wrapcheck
		}

		if logoutErr != nil {
			return logoutErr //nolint:wrapcheck
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")

		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the profile of the signed in user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newConsoleSession(cmd)
		if err != nil {
			return err
		}

		me, err := s.client.Me(contextOf(cmd))
		if err != nil {
			return err //nolint:wrapcheck
		}

		return printJSON(cmd.OutOrStdout(), me)
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users of the tenant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newConsoleSession(cmd)
		if err != nil {
			return err
		}

		query := make(map[string][]string, len(usersQuery))
		for k, v := range usersQuery {
			query[k] = []string{v}
		}

		users, err := s.client.ListUsers(contextOf(cmd), query)
		if err != nil {
			return err //nolint:wrapcheck
		}

		return printJSON(cmd.OutOrStdout(), users)
	},
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
