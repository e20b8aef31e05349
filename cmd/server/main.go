package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/server"
	"github.com/iudanet/docsync/internal/server/config"
	"github.com/iudanet/docsync/internal/server/jwt"
	"github.com/iudanet/docsync/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(args, stdout, stderr)
	case "issue-token":
		return issueToken(args, stdout)
	case "version":
		printVersion(stdout)
		return nil
	case "help":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serve(args []string, stdout, stderr io.Writer) error {
	for _, a := range args {
		switch a {
		case "-version", "--version":
			printVersion(stdout)
			return nil
		case "-h", "-help", "--help":
			usage(stdout)
			return nil
		}
	}

	cfg, err := config.Load(args, os.Getenv)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("docsync server starting", "version", Version, "commit", GitCommit)

	srv, err := server.New(ctx, cfg, Version, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("failed to close server", slog.Any("error", err))
		}
	}()

	return srv.Run(ctx)
}

// issueToken печатает токен, подписанный секретом сервера. Удобно для
// скриптов и для серверов без dev-tokens.
func issueToken(args []string, stdout io.Writer) error {
	var user, name string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		var dst *string
		switch strings.TrimLeft(args[i], "-") {
		case "user":
			dst = &user
		case "name":
			dst = &name
		default:
			// остальное разбирает config.Load
			rest = append(rest, args[i])
			continue
		}
		if i+1 >= len(args) {
			return fmt.Errorf("flag %s needs a value", args[i])
		}
		*dst = args[i+1]
		i++
	}
	if err := validation.ValidateEntityID(user); err != nil {
		return fmt.Errorf("invalid -user: %w", err)
	}

	cfg, err := config.Load(rest, os.Getenv)
	if err != nil {
		return err
	}

	token, _, err := jwt.NewService(cfg.JWTSecret, cfg.TokenTTL).Issue(models.User{ID: user, Name: name})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docsync-server [serve|issue-token|version] [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "issue-token flags: -user ID [-name NAME] plus the config flags")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config flags:")
	config.Usage(w)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "docsync server\n")
	fmt.Fprintf(w, "Version:    %s\n", Version)
	fmt.Fprintf(w, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
}
