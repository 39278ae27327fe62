package worker

import (
	"fmt"

	"inboxflow/internal/automation/repository"
	"inboxflow/internal/automation/usecase"
	"inboxflow/pkg/ai"
	"inboxflow/pkg/config"
	"inboxflow/pkg/database"
	"inboxflow/pkg/drive"
	"inboxflow/pkg/gmail"
	"inboxflow/pkg/googleauth"
	"inboxflow/pkg/imap"
	"inboxflow/pkg/sheets"
	"inboxflow/pkg/telegram"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// app holds the wired dependency graph shared by the commands
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *gorm.DB

	automations repository.AutomationRepository
	connections repository.ConnectionRepository
	executions  repository.ExecutionRepository

	gmail       *gmail.Service
	source      usecase.EventSource
	credentials *usecase.CredentialProvider
	evaluator   *usecase.Evaluator
	provisioner *usecase.Provisioner
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}
	return wire(cfg, logger, db), nil
}

// wire builds every component on top of an open database
func wire(cfg *config.Config, logger zerolog.Logger, db *gorm.DB) *app {
	a := &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		automations: repository.NewAutomationRepository(db),
		connections: repository.NewConnectionRepository(db),
		executions:  repository.NewExecutionRepository(db),
		gmail:       gmail.NewService(),
	}

	a.source = a.gmail
	if cfg.EventSource == "imap" {
		a.source = imap.NewSource(imap.Options{Addr: cfg.IMAPAddr, TLS: true})
	}

	refresher := googleauth.NewRefresher(cfg.GoogleClientID, cfg.GoogleClientSecret)
	a.credentials = usecase.NewCredentialProvider(a.connections, refresher, logger)

	sheetsService := sheets.NewService()
	driveService := drive.NewService()

	deps := usecase.ExecutorDeps{
		Executions:  a.executions,
		Credentials: a.credentials,
		Source:      a.source,
		Messenger:   telegram.NewClient(cfg.TelegramBotToken),
		Sheets:      sheetsService,
		Uploader:    driveService,
		CallTimeout: cfg.CallTimeout,
	}
	if analyzer, err := newAnalyzer(cfg, logger); err != nil {
		logger.Warn().Err(err).Msg("AI analysis disabled")
	} else {
		deps.Analyzer = analyzer
	}

	executor := usecase.NewExecutor(deps, logger)
	a.evaluator = usecase.NewEvaluator(a.automations, a.credentials, a.source, executor, logger,
		usecase.WithMaxResults(cfg.MaxResults),
		usecase.WithCallTimeout(cfg.CallTimeout),
	)
	a.provisioner = usecase.NewProvisioner(a.automations, a.credentials, a.source, sheetsService, driveService, logger)
	return a
}

func newAnalyzer(cfg *config.Config, logger zerolog.Logger) (*ai.Analyzer, error) {
	provider, err := ai.NewProvider(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure AI provider: %w", err)
	}
	return ai.NewAnalyzer(provider, ai.DefaultBreakerSettings(), logger), nil
}

func (a *app) migrate() error {
	if err := repository.AutoMigrate(a.db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
