package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/iudanet/docsync/internal/client/api"
	"github.com/iudanet/docsync/internal/client/storage"
	"github.com/iudanet/docsync/internal/models"
)

// tokenClaims is what the CLI reads from an access token. The signature
// is checked by the server, not here.
type tokenClaims struct {
	Name string `json:"name,omitempty"`
	gojwt.RegisteredClaims
}

func (c *Cli) loginCmd() *cobra.Command {
	var token, user, name string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an access token for later commands",
		Long: `Saves the access token, server URL, space and environment in the local database.

Without --token the token is read from the terminal. With --user a
development token is requested from a server started with -dev-tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withTimeout(cmd.Context())
			defer cancel()
			return c.runLogin(ctx, token, user, name)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token")
	cmd.Flags().StringVar(&user, "user", "", "request a development token for this user id")
	cmd.Flags().StringVar(&name, "name", "", "display name of the development token")
	cmd.MarkFlagsMutuallyExclusive("token", "user")
	return cmd
}

func (c *Cli) runLogin(ctx context.Context, token, user, name string) error {
	server := c.opts.server

	if token == "" && user != "" {
		resp, err := api.NewClient(server, "").IssueToken(ctx, user, name)
		if err != nil {
			return fmt.Errorf("failed to get development token: %w", err)
		}
		token = resp.AccessToken
	}
	if token == "" {
		var err error
		token, err = c.io.ReadPassword("Access token: ")
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	claims := &tokenClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("malformed access token: %w", err)
	}
	if claims.Subject == "" {
		return errors.New("access token has no subject")
	}

	sess := &storage.Session{
		Server:      server,
		UserID:      claims.Subject,
		Name:        claims.Name,
		AccessToken: token,
		Space:       c.opts.space,
		Environment: c.opts.environment,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if sess.Expired(c.clock.Now()) {
		return errors.New("access token has expired")
	}

	// Проверяем токен на сервере, если есть на чем
	client := api.NewClient(server, token)
	if sess.Space != "" {
		env := sess.Environment
		if env == "" {
			env = defaultEnvironment
		}
		if _, err := client.ListEntities(ctx, sess.Space, env, models.EntityTypeEntry); err != nil {
			return fmt.Errorf("server rejected the token: %w", err)
		}
	} else if err := client.Health(ctx); err != nil {
		return fmt.Errorf("server is unavailable: %w", err)
	}

	if err := c.sessions.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println("✓ Login successful!")
	c.io.Printf("User:   %s\n", displayUser(sess))
	c.io.Printf("Server: %s\n", sess.Server)
	if sess.ExpiresAt > 0 {
		c.io.Printf("Token expires: %s\n", time.Unix(sess.ExpiresAt, 0).UTC().Format(time.RFC3339))
	}
	return nil
}

func (c *Cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := c.sessions.DeleteSession(cmd.Context())
			if errors.Is(err, storage.ErrSessionNotFound) {
				c.io.Println("Not logged in.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}
			c.io.Println("✓ Logged out.")
			return nil
		},
	}
}

func (c *Cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved session and server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.withTimeout(cmd.Context())
			defer cancel()
			return c.runStatus(ctx)
		},
	}
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")

	sess, err := c.sessions.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		c.io.Println("Status: Not logged in")
		c.io.Println("Run 'docsync login' to authenticate.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	c.io.Println("Status: Logged in")
	c.io.Printf("User:        %s\n", displayUser(sess))
	c.io.Printf("Server:      %s\n", sess.Server)
	if sess.Space != "" {
		c.io.Printf("Space:       %s\n", sess.Space)
	}
	if sess.Environment != "" {
		c.io.Printf("Environment: %s\n", sess.Environment)
	}

	if sess.ExpiresAt > 0 {
		expiresAt := time.Unix(sess.ExpiresAt, 0).UTC()
		c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))
		if sess.Expired(c.clock.Now()) {
			c.io.Println("⚠️  Token has expired. Please login again.")
		} else {
			c.io.Printf("Time remaining: %s\n", expiresAt.Sub(c.clock.Now()).Round(time.Second))
		}
	}

	if err := api.NewClient(sess.Server, "").Health(ctx); err != nil {
		c.io.Printf("Server health: unavailable (%v)\n", err)
	} else {
		c.io.Println("Server health: ok")
	}
	return nil
}

func displayUser(s *storage.Session) string {
	if s.Name == "" {
		return s.UserID
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.UserID)
}
