// Package cli реализует командную строку docsync: вход, чтение и правка
// сущностей через живые документы, действия жизненного цикла и
// наблюдение за документом.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/docsync/internal/client/api"
	"github.com/iudanet/docsync/internal/client/iocli"
	"github.com/iudanet/docsync/internal/client/storage"
	"github.com/iudanet/docsync/internal/client/storage/boltdb"
	"github.com/iudanet/docsync/internal/clock"
	"github.com/iudanet/docsync/internal/models"
)

const (
	defaultServer      = "http://localhost:8080"
	defaultDB          = "docsync-client.db"
	defaultEnvironment = "master"
	defaultLocale      = "en-US"
)

// options are the persistent flags shared by every command.
type options struct {
	server      string
	db          string
	space       string
	environment string
	locale      string
	logLevel    string
	timeout     time.Duration
	asset       bool
}

// Cli is the docsync command tree.
type Cli struct {
	io       iocli.IO
	stderr   io.Writer
	clock    clock.Clock
	logger   *slog.Logger
	sessions storage.SessionStorage
	closeDB  func() error
	opts     options
}

// New creates the CLI writing its output to out and its logs to stderr.
func New(out iocli.IO, stderr io.Writer) *Cli {
	return &Cli{
		io:     out,
		stderr: stderr,
		clock:  clock.Real(),
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

// Command builds the root command. Version is printed by --version.
func (c *Cli) Command(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "docsync",
		Short:         "Collaborative editing client for docsync",
		Long:          `Reads and edits entries and assets, runs publishing actions and watches documents live.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.SetOut(c.io)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.server, "server", defaultServer, "server URL (login remembers it)")
	flags.StringVar(&c.opts.db, "db", defaultDB, "path to the local session database")
	flags.StringVar(&c.opts.space, "space", "", "space id (login remembers it)")
	flags.StringVar(&c.opts.environment, "environment", "", "environment id (default \"master\")")
	flags.StringVar(&c.opts.locale, "locale", defaultLocale, "locale of field values")
	flags.StringVar(&c.opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.DurationVar(&c.opts.timeout, "timeout", 30*time.Second, "timeout of one command")
	flags.BoolVar(&c.opts.asset, "asset", false, "address assets instead of entries")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.statusCmd(),
		c.getCmd(),
		c.createCmd(),
		c.applyCmd(),
		c.setCmd(),
		c.unsetCmd(),
		c.watchCmd(),
	)
	for _, action := range []models.Action{
		models.ActionPublish,
		models.ActionUnpublish,
		models.ActionArchive,
		models.ActionUnarchive,
		models.ActionDelete,
	} {
		root.AddCommand(c.lifecycleCmd(action))
	}

	return root
}

// Execute runs the command tree with args.
func (c *Cli) Execute(ctx context.Context, version string, args []string) error {
	root := c.Command(version)
	root.SetArgs(args)
	// PostRun не вызывается при ошибке команды, поэтому закрываем здесь
	err := root.ExecuteContext(ctx)
	return errors.Join(err, c.teardown())
}

func (c *Cli) setup() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.opts.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	c.logger = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))

	if c.sessions != nil {
		return nil
	}
	store, err := boltdb.New(context.Background(), c.opts.db)
	if err != nil {
		return fmt.Errorf("failed to open session database: %w", err)
	}
	c.sessions = store
	c.closeDB = store.Close
	return nil
}

func (c *Cli) teardown() error {
	if c.closeDB == nil {
		return nil
	}
	err := c.closeDB()
	c.closeDB = nil
	c.sessions = nil
	return err
}

// session returns the stored session with the flags applied on top.
func (c *Cli) session(ctx context.Context, cmd *cobra.Command) (*storage.Session, error) {
	sess, err := c.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, errors.New("not logged in, run 'docsync login' first")
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if sess.Expired(c.clock.Now()) {
		return nil, errors.New("access token has expired, run 'docsync login' again")
	}

	if cmd.Flags().Changed("server") {
		sess.Server = c.opts.server
	}
	if c.opts.space != "" {
		sess.Space = c.opts.space
	}
	if c.opts.environment != "" {
		sess.Environment = c.opts.environment
	}
	if sess.Environment == "" {
		sess.Environment = defaultEnvironment
	}
	if sess.Space == "" {
		return nil, errors.New("no space selected, pass --space or log in with --space")
	}
	return sess, nil
}

func (c *Cli) ref(sess *storage.Session, id string) models.Ref {
	typ := models.EntityTypeEntry
	if c.opts.asset {
		typ = models.EntityTypeAsset
	}
	return models.Ref{Space: sess.Space, Environment: sess.Environment, Type: typ, ID: id}
}

func (c *Cli) api(sess *storage.Session) *api.Client {
	return api.NewClient(sess.Server, sess.AccessToken)
}

// withTimeout bounds one command by --timeout.
func (c *Cli) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.timeout)
}
