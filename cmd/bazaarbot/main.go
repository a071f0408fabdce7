package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bazaarlink/bazaarbot/internal/api"
	"github.com/bazaarlink/bazaarbot/internal/flow"
	"github.com/bazaarlink/bazaarbot/internal/lockfile"
	"github.com/bazaarlink/bazaarbot/internal/media"
	"github.com/bazaarlink/bazaarbot/internal/messaging"
	"github.com/bazaarlink/bazaarbot/internal/scheduler"
	"github.com/bazaarlink/bazaarbot/internal/services"
	"github.com/bazaarlink/bazaarbot/internal/session"
	"github.com/bazaarlink/bazaarbot/internal/store"
	"github.com/bazaarlink/bazaarbot/internal/twiliowhatsapp"
	"github.com/bazaarlink/bazaarbot/internal/util"
	"github.com/bazaarlink/bazaarbot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for BazaarBot state data
	DefaultStateDir = "/var/lib/bazaarbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "bazaarbot.db"
	// DefaultShutdownTimeout bounds graceful shutdown of the API server
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultPurgeCron runs the expired-offer purge nightly at 03:00
	DefaultPurgeCron = "0 3 * * *"
)

func main() {
	// .env first so BAZAARBOT_DEBUG can raise the log level.
	loadDotEnv()

	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping BazaarBot")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "provider", *flags.provider)

	if err := run(flags); err != nil {
		slog.Error("BazaarBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("BazaarBot exited successfully")
}

// run wires the modules together and blocks until a shutdown signal arrives.
func run(flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release lock file", "error", err)
		}
	}()

	st, err := openStore(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, waClient, mediaStore, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	sessions := session.NewManager(st)
	offers := services.NewOffers(st)
	deps := &flow.Deps{
		Sessions:   sessions,
		Sender:     svc,
		Users:      services.NewUsers(st),
		Agreements: services.NewAgreements(st),
		Offers:     offers,
		Products:   services.NewProducts(st),
		Catches:    services.NewCatches(st),
		Media:      mediaStore,
	}
	deps.Trigger = flow.NewTrigger(deps)
	router := flow.NewRouter(deps)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(*flags.purgeCron, func() {
		if _, err := offers.PurgeExpired(context.Background()); err != nil {
			slog.Error("Expired offer purge failed", "error", err)
		}
	}); err != nil {
		return err
	}

	apiServer := api.NewServer(st, buildAPIOptions(flags)...)
	if ts, ok := svc.(*messaging.TwilioService); ok {
		apiServer.Mount("/twilio/webhook", ts.WebhookHandler)
		slog.Info("Twilio webhook mounted", "path", "/twilio/webhook")
	}
	apiServer.Start()

	if err := svc.Start(ctx); err != nil {
		return err
	}

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		router.Run(ctx, svc.Messages())
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	if err := svc.Stop(); err != nil {
		slog.Warn("Messaging service stop failed", "error", err)
	}
	<-routerDone

	if waClient != nil {
		waClient.GetClient().Disconnect()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown failed", "error", err)
	}
	return nil
}

// openStore selects the backing store from the DSN. No DSN means in-memory,
// which loses sessions on restart and is only useful for local testing.
func openStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildMessagingService constructs the configured transport. For WhatsApp it
// also returns the underlying client and a media store rooted in the state
// directory; for Twilio both are nil since inbound media is not supported.
func buildMessagingService(flags Flags) (messaging.Service, *whatsapp.Client, *media.Store, error) {
	if *flags.provider == "twilio" {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, nil, err
		}
		return messaging.NewTwilioService(client), nil, nil, nil
	}

	client, err := whatsapp.NewClient(buildWhatsAppOptions(flags)...)
	if err != nil {
		return nil, nil, nil, err
	}
	mediaStore := media.NewStore(client, filepath.Join(*flags.stateDir, "media"))
	return messaging.NewWhatsAppService(client, mediaStore), client, mediaStore, nil
}

// Config holds environment configuration
type Config struct {
	WhatsAppDSN string
	DatabaseURL string
	StateDir    string
	APIAddr     string
	Provider    string
	PurgeCron   string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput  *string
	numeric   *bool
	stateDir  *string
	dbDSN     *string
	apiAddr   *string
	provider  *string
	purgeCron *string
}

// initializeLogger sets up structured logging. BAZAARBOT_DEBUG=true lowers
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.BoolEnv("BAZAARBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadDotEnv merges a .env file into the environment when one exists.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
}

// loadEnvironmentConfig loads configuration from environment variables
func loadEnvironmentConfig() Config {
	config := Config{
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("BAZAARBOT_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
		Provider:    os.Getenv("MESSAGING_PROVIDER"),
		PurgeCron:   os.Getenv("PURGE_SCHEDULE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BAZAARBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default to WhatsApp DSN if specific not set
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = config.DatabaseURL
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDSN)
	}

	if config.Provider == "" {
		config.Provider = "whatsapp"
	}
	if config.PurgeCron == "" {
		config.PurgeCron = DefaultPurgeCron
	}

	slog.Debug("environment variables loaded",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"BAZAARBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"MESSAGING_PROVIDER", config.Provider)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:  flag.String("qr-output", "", "path to write login QR code"),
		numeric:   flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for BazaarBot data (overrides $BAZAARBOT_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.WhatsAppDSN, "database DSN for WhatsApp and application store (overrides $WHATSAPP_DB_DSN or $DATABASE_URL)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		provider:  flag.String("provider", config.Provider, "messaging provider, whatsapp or twilio (overrides $MESSAGING_PROVIDER)"),
		purgeCron: flag.String("purge-cron", config.PurgeCron, "cron schedule for the expired-offer purge (overrides $PURGE_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"provider", *flags.provider)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.WhatsAppDSN && config.WhatsAppDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	// Ensure the DSN's directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		dbDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			slog.Error("Failed to create database directory", "error", err, "db_dir", dbDir)
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.dbDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.dbDSN))
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
