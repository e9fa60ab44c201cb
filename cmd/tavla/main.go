package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/config"
	"github.com/hylla/tavla/internal/domain"
	"github.com/hylla/tavla/internal/platform"
	"github.com/hylla/tavla/internal/tui"
)

const (
	envConfigPath = "TAVLA_CONFIG"
	envDBPath     = "TAVLA_DB_PATH"
)

// version is set at build time using -ldflags.
var version = "dev"

// program is the part of tea.Program the root command drives.
type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveFunc is swapped in tests so serve does not bind a port.
var serveFunc = server.Run

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation. fang renders returned errors on stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(&globalOptions{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	envOpts := platform.OptionsFromEnv(os.LookupEnv)
	defaultDevMode := version == "dev"
	if _, ok := os.LookupEnv(platform.EnvDevMode); ok {
		defaultDevMode = envOpts.DevMode
	}
	defaultApp := envOpts.AppName
	if defaultApp == "" {
		defaultApp = platform.DefaultAppName
	}

	root := &cobra.Command{
		Use:           "tavla",
		Short:         "Kanban board for a small team",
		Long:          "tavla is a four-column task board with drag-and-drop moves, a REST/MCP server and a SQLite store.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "tui", runTUI)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newServeCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newSweepCommand(opts),
		newMoveCommand(opts),
		newMemberCommand(opts),
	)
	return root
}

func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", paths.AppName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", opts.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			dbPath, _ := opts.resolveDBPath(paths)
			_, _ = fmt.Fprintf(out, "db: %s\n", dbPath)
			return nil
		},
	}
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, change stream and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "serve", func(ctx context.Context, cmd *cobra.Command, s *session) error {
				httpBind := s.cfg.Server.HTTPBind
				if strings.TrimSpace(bind) != "" {
					httpBind = bind
				}
				adapter := common.NewAppServiceAdapter(s.svc)
				return serveFunc(ctx, server.Config{
					HTTPBind:      httpBind,
					APIEndpoint:   s.cfg.Server.APIEndpoint,
					MCPEndpoint:   s.cfg.Server.MCPEndpoint,
					ServerName:    s.appName,
					ServerVersion: version,
					CORSOrigins:   append([]string(nil), s.cfg.Server.CORSOrigins...),
				}, server.Dependencies{
					Service: adapter,
					Events:  adapter,
					Logger:  s.logger.consoleSink,
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "override server.http_bind")
	return cmd
}

func newSweepCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Store Overdue on every past-due task (requires board.store_overdue)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "sweep", func(ctx context.Context, cmd *cobra.Command, s *session) error {
				swept, err := s.svc.SweepOverdue(ctx)
				if err != nil {
					return fmt.Errorf("sweep overdue: %w", err)
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "swept %d task(s)\n", len(swept))
				for _, task := range swept {
					_, _ = fmt.Fprintf(out, "%s\t%s\n", task.ID, task.Title)
				}
				return nil
			})
		},
	}
}

func newMoveCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <column>",
		Short: "Move a task onto a column, named in either vocabulary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, "move", func(ctx context.Context, cmd *cobra.Command, s *session) error {
				task, changed, err := s.svc.MoveTask(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("move task: %w", err)
				}
				vocab := s.svc.Vocabulary()
				label := domain.MustLabel(vocab, task.Status)
				if !changed {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%q already in %s\n", task.Title, label)
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%q moved to %s\n", task.Title, label)
				return nil
			})
		},
	}
}

func newMemberCommand(opts *globalOptions) *cobra.Command {
	member := &cobra.Command{
		Use:   "member",
		Short: "Manage team members",
	}

	var in app.CreateTeamMemberInput
	var role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a team member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "member add", func(ctx context.Context, cmd *cobra.Command, s *session) error {
				in.Role = domain.Role(role)
				created, err := s.svc.CreateTeamMember(ctx, in)
				if err != nil {
					return fmt.Errorf("create team member: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", created.ID, created.Name, created.Role)
				return nil
			})
		},
	}
	add.Flags().StringVar(&in.ID, "id", "", "member id (generated when blank)")
	add.Flags().StringVar(&in.Name, "name", "", "display name")
	add.Flags().StringVar(&in.Email, "email", "", "optional email address")
	add.Flags().StringVar(&in.Avatar, "avatar", "", "optional avatar url")
	add.Flags().StringVar(&role, "role", string(domain.RoleMember), "admin, lead, member or viewer")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List team members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, opts, "member list", func(ctx context.Context, cmd *cobra.Command, s *session) error {
				members, err := s.svc.ListTeamMembers(ctx)
				if err != nil {
					return fmt.Errorf("list team members: %w", err)
				}
				for _, m := range members {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Role, m.Email)
				}
				return nil
			})
		},
	}

	member.AddCommand(add, list)
	return member
}

func runTUI(ctx context.Context, _ *cobra.Command, s *session) error {
	m := tui.NewModel(
		s.svc,
		tui.WithVocabulary(s.cfg.Vocabulary()),
		tui.WithActor(s.actor),
		tui.WithActivationDistance(s.cfg.Board.DragActivationDistance),
		tui.WithShowDescription(s.cfg.Board.ShowDescription),
		tui.WithChangeFeed(s.svc.Subscribe(ctx)),
	)
	s.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		s.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// session is the opened runtime state a data command works against.
type session struct {
	appName    string
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
	actor      domain.TeamMember
}

type sessionFunc func(ctx context.Context, cmd *cobra.Command, s *session) error

// withSession resolves config, opens storage and runs fn with the configured actor attached to ctx.
func withSession(cmd *cobra.Command, opts *globalOptions, command string, fn sessionFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
	s, err := openSession(ctx, opts, cmd.ErrOrStderr(), command == "tui")
	if err != nil {
		return err
	}
	defer s.close(cmd.ErrOrStderr())

	s.logger.Info("command flow start", "command", command)
	if err := fn(app.WithActor(ctx, s.actor), cmd, s); err != nil {
		s.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	s.logger.Info("command flow complete", "command", command)
	return nil
}

func openSession(ctx context.Context, opts *globalOptions, stderr io.Writer, muteConsole bool) (*session, error) {
	paths, err := opts.paths()
	if err != nil {
		return nil, err
	}
	configPath := opts.resolveConfigPath(paths)
	dbPath, dbOverridden := opts.resolveDBPath(paths)

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, paths.AppName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if muteConsole {
		logger.SetConsoleEnabled(false)
	}
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	if err := config.EnsureConfigDir(cfg.Database.Path); err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		Vocabulary:   cfg.Vocabulary(),
		StoreOverdue: cfg.Board.StoreOverdue,
	})
	s := &session{
		appName:    paths.AppName,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		repo:       repo,
		svc:        svc,
	}

	actor, err := svc.EnsureTeamMember(ctx, domain.TeamMember{
		ID:    cfg.Identity.ActorID,
		Name:  cfg.Identity.DisplayName,
		Email: cfg.Identity.Email,
		Role:  domain.Role(cfg.Identity.Role),
	})
	if err != nil {
		s.close(stderr)
		return nil, fmt.Errorf("ensure identity member %q: %w", cfg.Identity.ActorID, err)
	}
	s.actor = actor
	logger.Debug("identity resolved", "actor_id", actor.ID, "role", actor.Role)
	return s, nil
}

func (s *session) close(stderr io.Writer) {
	if s == nil {
		return
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("sqlite close failed", "db_path", s.cfg.Database.Path, "err", err)
		}
	}
	if err := s.logger.Close(); err != nil && s.logger.shouldLogToSink(s.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

func (o *globalOptions) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

func (o *globalOptions) resolveConfigPath(paths platform.Paths) string {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return path
	}
	if path := strings.TrimSpace(os.Getenv(envConfigPath)); path != "" {
		return path
	}
	return paths.ConfigPath
}

// resolveDBPath reports whether the path came from a flag or the environment rather than the default.
func (o *globalOptions) resolveDBPath(paths platform.Paths) (string, bool) {
	if path := strings.TrimSpace(o.dbPath); path != "" {
		return path, true
	}
	if path := strings.TrimSpace(os.Getenv(envDBPath)); path != "" {
		return path, true
	}
	return paths.DBPath, false
}
