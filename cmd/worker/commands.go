package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/scheduler"
	"inboxflow/internal/automation/usecase"
	"inboxflow/internal/notification"
	"inboxflow/pkg/config"
	"inboxflow/pkg/lock"
	"inboxflow/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const tickLockKey = "inboxflow:tick"

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "inboxflow",
		Short:         "Runs email automations: trigger on new mail, analyze it, act on it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newTickCommand(), newMigrateCommand(), newAutomationCommand(), newConnectionCommand())
	return root
}

// withApp loads configuration, wires the app and runs fn with a context
// cancelled on SIGINT or SIGTERM
func withApp(fn func(ctx context.Context, a *app) error) error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Migrate and start the scheduler and the push listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(run)
		},
	}
}

func run(ctx context.Context, a *app) error {
	if err := a.migrate(); err != nil {
		return err
	}

	var opts []scheduler.Option
	if a.cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(a.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, scheduler.WithLock(lock.NewRedisLock(client, tickLockKey, a.cfg.TickLockTTL)))
	}

	s, err := scheduler.New(a.evaluator, a.cfg.Schedule, a.logger, opts...)
	if err != nil {
		return err
	}
	s.Start()
	defer s.Stop()

	if a.cfg.GoogleProjectID != "" {
		startPush(ctx, a)
	} else {
		a.logger.Warn().Msg("GOOGLE_PROJECT_ID not configured, push notifications disabled")
	}

	<-ctx.Done()
	a.logger.Info().Msg("shutting down")
	return nil
}

func startPush(ctx context.Context, a *app) {
	topicName := a.cfg.GooglePubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}

	listener, err := notification.NewListener(ctx, a.cfg.GoogleProjectID, topicName, a.cfg.GoogleCredentials, a.connections, a.evaluator, a.logger)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to initialize push listener")
		return
	}
	go func() {
		defer listener.Close()
		if err := listener.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("push listener stopped")
		}
	}()

	registrar := notification.NewWatchRegistrar(a.automations, a.credentials, a.gmail,
		notification.TopicPath(a.cfg.GoogleProjectID, topicName), a.logger)
	go registrar.Run(ctx, notification.WatchRenewInterval)
}

func newTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single scan of every active automation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return a.evaluator.EvaluateAll(ctx)
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return a.migrate()
			})
		},
	}
}

func newAutomationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "automation",
		Short: "Manage automations",
	}
	cmd.AddCommand(newCreateCommand(), newStatusCommand("pause", domain.StatusPaused), newStatusCommand("resume", domain.StatusActive), newLogsCommand())
	return cmd
}

// createFlags are the flags of "automation create"
type createFlags struct {
	user     string
	name     string
	from     string
	operator string
	actions  string
	text     string
	language string
	file     string
}

// automationFile is the JSON document accepted by --file
type automationFile struct {
	UserID   string          `json:"user_id"`
	Name     string          `json:"name"`
	Trigger  domain.Trigger  `json:"trigger"`
	Actions  []domain.Action `json:"actions"`
	Language string          `json:"analysis_language"`
}

func newCreateCommand() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an automation for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				automation, err := a.provisioner.Create(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), automation)
			})
		},
	}

	cmd.Flags().StringVar(&f.user, "user", "", "owner user id")
	cmd.Flags().StringVar(&f.name, "name", "", "automation name, unique per user")
	cmd.Flags().StringVar(&f.from, "from", "", "sender filter value")
	cmd.Flags().StringVar(&f.operator, "operator", "", "sender filter operator: equals, ends_with or contains (empty for an exact address)")
	cmd.Flags().StringVar(&f.actions, "actions", "", "comma separated action types")
	cmd.Flags().StringVar(&f.text, "text", "", "static chat message text")
	cmd.Flags().StringVar(&f.language, "language", "es", "analysis language: es or en")
	cmd.Flags().StringVar(&f.file, "file", "", "JSON automation definition")
	return cmd
}

func (f createFlags) input() (usecase.CreateAutomationInput, error) {
	if f.file != "" {
		return readAutomationFile(f.file, f.user)
	}
	if f.user == "" {
		return usecase.CreateAutomationInput{}, errors.New("--user is required")
	}

	in := usecase.CreateAutomationInput{
		UserID:   f.user,
		Name:     f.name,
		Trigger:  domain.Trigger{Type: domain.TriggerNewEmail},
		Language: f.language,
	}

	if value := strings.TrimSpace(f.from); value != "" {
		switch domain.FilterOperator(f.operator) {
		case "":
			in.Trigger.From = domain.NewBareFilter(value)
		case domain.OperatorEquals, domain.OperatorEndsWith, domain.OperatorContains:
			in.Trigger.From = &domain.TriggerFilter{Operator: domain.FilterOperator(f.operator), Value: value}
		default:
			return usecase.CreateAutomationInput{}, fmt.Errorf("unknown operator %q", f.operator)
		}
	}

	for _, t := range strings.Split(f.actions, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		action := domain.Action{Type: domain.ActionType(t)}
		if action.Type == domain.ActionSendChatMessage {
			action.Text = f.text
		}
		in.Actions = append(in.Actions, action)
	}
	return in, nil
}

func readAutomationFile(path, user string) (usecase.CreateAutomationInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return usecase.CreateAutomationInput{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc automationFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return usecase.CreateAutomationInput{}, fmt.Errorf("invalid automation file %s: %w", path, err)
	}
	if user != "" {
		doc.UserID = user
	}
	if doc.UserID == "" {
		return usecase.CreateAutomationInput{}, errors.New("user_id or --user is required")
	}
	if doc.Trigger.Type == "" {
		doc.Trigger.Type = domain.TriggerNewEmail
	}
	return usecase.CreateAutomationInput{
		UserID:   doc.UserID,
		Name:     doc.Name,
		Trigger:  doc.Trigger,
		Actions:  doc.Actions,
		Language: doc.Language,
	}, nil
}

func newStatusCommand(use string, status domain.AutomationStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <automation-id>",
		Short: fmt.Sprintf("Set an automation %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.provisioner.SetStatus(ctx, args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "automation %s is now %s\n", args[0], status)
				return nil
			})
		},
	}
}

func newLogsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <automation-id>",
		Short: "Show the latest execution log entries of an automation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				logs, err := a.executions.ListLogs(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), logs)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

// connectionFlags are the flags of "connection link"
type connectionFlags struct {
	user         string
	provider     string
	accessToken  string
	refreshToken string
	externalID   string
	expiresIn    time.Duration
}

func newConnectionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connection",
		Short: "Manage linked accounts",
	}

	var f connectionFlags
	link := &cobra.Command{
		Use:   "link",
		Short: "Store the credential of a linked account, replacing the previous one",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := f.connection(time.Now())
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.connections.Replace(ctx, conn); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "linked %s for user %s\n", conn.Provider, conn.UserID)
				return nil
			})
		},
	}
	link.Flags().StringVar(&f.user, "user", "", "owner user id")
	link.Flags().StringVar(&f.provider, "provider", string(domain.ProviderGoogle), "google or telegram")
	link.Flags().StringVar(&f.accessToken, "access-token", "", "OAuth access token")
	link.Flags().StringVar(&f.refreshToken, "refresh-token", "", "OAuth refresh token")
	link.Flags().StringVar(&f.externalID, "external-id", "", "mailbox address or chat id")
	link.Flags().DurationVar(&f.expiresIn, "expires-in", 0, "access token lifetime, 0 for no expiry")

	cmd.AddCommand(link)
	return cmd
}

func (f connectionFlags) connection(now time.Time) (*domain.Connection, error) {
	if f.user == "" || f.externalID == "" {
		return nil, errors.New("--user and --external-id are required")
	}
	provider := domain.Provider(f.provider)
	if provider != domain.ProviderGoogle && provider != domain.ProviderTelegram {
		return nil, fmt.Errorf("unknown provider %q", f.provider)
	}

	conn := &domain.Connection{
		ID:           uuid.New().String(),
		UserID:       f.user,
		Provider:     provider,
		AccessToken:  f.accessToken,
		RefreshToken: f.refreshToken,
		ExternalID:   f.externalID,
	}
	if f.expiresIn > 0 {
		expiresAt := now.Add(f.expiresIn)
		conn.ExpiresAt = &expiresAt
	}
	return conn, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
