package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/utkarsh5026/pkgiter/internal/config"
	"github.com/utkarsh5026/pkgiter/internal/logging"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"strategy":          "strategy",
	"concurrency":       "concurrency",
	"batch-concurrency": "batch_concurrency",
	"built":             "built",
	"silent":            "silent",
	"npm-client":        "npm_client",
	"rate":              "rate_limit",
	"rate-burst":        "rate_burst",
	"log-level":         "logging.level",
	"log-format":        "logging.format",
}

// session is everything a command needs once flags and config are resolved.
type session struct {
	fs       afero.Fs
	root     string
	cfg      *config.Config
	log      *slog.Logger
	pkgs     []workspace.Package
	closeLog io.Closer
}

func openSession(cmd *cobra.Command, fsys afero.Fs, g *globalOptions) (*session, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	v, err := config.New(root)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	if skip, _ := cmd.Flags().GetBool("skip-dependents"); skip {
		v.Set("failure_policy", "skip-dependents")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	log, closer, err := newLogger(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return nil, err
	}

	pkgs, err := workspace.Load(fsys, root)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	log.Debug("workspace loaded",
		slog.String("root", root),
		slog.Int("packages", len(pkgs)),
		slog.String("strategy", cfg.Strategy),
	)

	return &session{fs: fsys, root: root, cfg: cfg, log: log, pkgs: pkgs, closeLog: closer}, nil
}

func (s *session) Close() error {
	return s.closeLog.Close()
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogger(stderr io.Writer, cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return logging.New(stderr, cfg.Level, cfg.Format), nopCloser{}, nil
	}
	return logging.Open(cfg.File, cfg.Level)
}

// relative shortens a package location for display.
func (s *session) relative(location string) string {
	if rel, err := filepath.Rel(s.root, location); err == nil {
		return rel
	}
	return location
}
