package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/api"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/bot"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/flow"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/genai"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/lockfile"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/messenger"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/relay"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/session"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/store"
	"github.com/ah3edsaad3-bit/clinic-bot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for clinic-bot state data
	DefaultStateDir = "/var/lib/clinic-bot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "clinic-bot.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Required credentials have no sane defaults
	if err := validateRequiredConfig(flags); err != nil {
		slog.Error("Missing required configuration", "error", err)
		os.Exit(1)
	}

	// Only one instance may own a state directory at a time
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping clinic-bot with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir,
		"dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr,
		"relay_provider", *flags.relayProvider)

	if err := run(flags); err != nil {
		slog.Error("clinic-bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("clinic-bot exited successfully")
}

// Config holds environment configuration
type Config struct {
	PageAccessToken string
	VerifyToken     string
	AppSecret       string
	OpenAIKey       string
	DatabaseDSN     string
	StateDir        string
	APIAddr         string
	RelayProvider   string
	OperatorPhone   string
	CallMeBotKey    string
	ReplyDelaySec   int
	SessionTTLMin   int
	ReminderSec     int
	SweepCron       string
	SummaryCron     string
}

// Flags holds command line flag values
type Flags struct {
	pageAccessToken *string
	verifyToken     *string
	appSecret       *string
	openaiKey       *string
	dbDSN           *string
	stateDir        *string
	apiAddr         *string
	relayProvider   *string
	operatorPhone   *string
	callMeBotKey    *string
	qrOutput        *string
	numeric         *bool
	replyDelaySec   *int
	sessionTTLMin   *int
	reminderSec     *int
	sweepCron       *string
	summaryCron     *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		PageAccessToken: os.Getenv("PAGE_ACCESS_TOKEN"),
		VerifyToken:     os.Getenv("VERIFY_TOKEN"),
		AppSecret:       os.Getenv("APP_SECRET"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		DatabaseDSN:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("CLINIC_BOT_STATE_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		RelayProvider:   os.Getenv("RELAY_PROVIDER"),
		OperatorPhone:   os.Getenv("OPERATOR_PHONE"),
		CallMeBotKey:    os.Getenv("CALLMEBOT_APIKEY"),
		ReplyDelaySec:   util.ParseIntEnv("REPLY_DELAY_SECONDS", 0),
		SessionTTLMin:   util.ParseIntEnv("SESSION_TTL_MINUTES", 0),
		ReminderSec:     util.ParseIntEnv("BOOKING_REMINDER_SECONDS", 0),
		SweepCron:       os.Getenv("SWEEP_SCHEDULE"),
		SummaryCron:     os.Getenv("SUMMARY_SCHEDULE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CLINIC_BOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("CLINIC_BOT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"PAGE_ACCESS_TOKEN_SET", config.PageAccessToken != "",
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"APP_SECRET_SET", config.AppSecret != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"CLINIC_BOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"RELAY_PROVIDER", config.RelayProvider,
		"OPERATOR_PHONE_SET", config.OperatorPhone != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		pageAccessToken: flag.String("page-access-token", config.PageAccessToken, "Messenger page access token (overrides $PAGE_ACCESS_TOKEN)"),
		verifyToken:     flag.String("verify-token", config.VerifyToken, "Messenger webhook verify token (overrides $VERIFY_TOKEN)"),
		appSecret:       flag.String("app-secret", config.AppSecret, "Meta app secret for webhook signature checks (overrides $APP_SECRET)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseDSN, "database DSN for bookings and transcripts (overrides $DATABASE_URL)"),
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for clinic-bot data (overrides $CLINIC_BOT_STATE_DIR)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		relayProvider:   flag.String("relay", config.RelayProvider, "operator relay provider: callmebot, twilio, whatsmeow or none (overrides $RELAY_PROVIDER)"),
		operatorPhone:   flag.String("operator-phone", config.OperatorPhone, "operator WhatsApp phone for relay notifications (overrides $OPERATOR_PHONE)"),
		callMeBotKey:    flag.String("callmebot-apikey", config.CallMeBotKey, "CallMeBot API key (overrides $CALLMEBOT_APIKEY)"),
		qrOutput:        flag.String("qr-output", "", "path to write whatsmeow login QR code"),
		numeric:         flag.Bool("numeric-code", false, "use numeric whatsmeow login code instead of QR code"),
		replyDelaySec:   flag.Int("reply-delay", config.ReplyDelaySec, "seconds to wait for follow-up fragments before replying (overrides $REPLY_DELAY_SECONDS)"),
		sessionTTLMin:   flag.Int("session-ttl", config.SessionTTLMin, "minutes of inactivity before a session expires (overrides $SESSION_TTL_MINUTES)"),
		reminderSec:     flag.Int("booking-reminder", config.ReminderSec, "seconds before an unfinished booking gets a nudge (overrides $BOOKING_REMINDER_SECONDS)"),
		sweepCron:       flag.String("sweep-cron", config.SweepCron, "cron schedule for the session sweep (overrides $SWEEP_SCHEDULE)"),
		summaryCron:     flag.String("summary-cron", config.SummaryCron, "cron schedule for the daily booking summary (overrides $SUMMARY_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"pageAccessTokenSet", *flags.pageAccessToken != "",
		"verifyTokenSet", *flags.verifyToken != "",
		"openaiKeySet", *flags.openaiKey != "",
		"dbDSN_set", *flags.dbDSN != "",
		"stateDir", *flags.stateDir,
		"apiAddr", *flags.apiAddr,
		"relay", *flags.relayProvider,
		"replyDelaySec", *flags.replyDelaySec,
		"sessionTTLMin", *flags.sessionTTLMin,
		"reminderSec", *flags.reminderSec)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// validateRequiredConfig fails fast on credentials the bot cannot run without.
func validateRequiredConfig(flags Flags) error {
	if *flags.pageAccessToken == "" {
		return errMissing("PAGE_ACCESS_TOKEN")
	}
	if *flags.verifyToken == "" {
		return errMissing("VERIFY_TOKEN")
	}
	if *flags.openaiKey == "" {
		return errMissing("OPENAI_API_KEY")
	}
	return nil
}

type missingConfigError string

func errMissing(name string) error { return missingConfigError(name) }

func (e missingConfigError) Error() string {
	return string(e) + " is required (set the environment variable or the matching flag)"
}

// buildStore opens the application store, choosing the driver from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgres", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildNotifier constructs the operator relay for the configured provider.
// The returned cleanup function is never nil.
func buildNotifier(flags Flags) (relay.Notifier, func(), error) {
	noop := func() {}
	switch *flags.relayProvider {
	case "callmebot":
		n, err := relay.NewCallMeBotNotifier(*flags.operatorPhone, *flags.callMeBotKey)
		return n, noop, err
	case "twilio":
		n, err := relay.NewTwilioNotifier(relay.WithToWhats(*flags.operatorPhone))
		return n, noop, err
	case "whatsmeow":
		waOpts := []relay.WhatsmeowOption{
			relay.WithOperatorPhone(*flags.operatorPhone),
			relay.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")),
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, relay.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, relay.WithNumericCode())
		}
		n, err := relay.NewWhatsmeowNotifier(waOpts...)
		if err != nil {
			return nil, noop, err
		}
		return n, n.Disconnect, nil
	case "", "none":
		slog.Info("Operator relay disabled")
		return relay.NopNotifier{}, noop, nil
	default:
		slog.Warn("Unknown relay provider, disabling operator relay", "provider", *flags.relayProvider)
		return relay.NopNotifier{}, noop, nil
	}
}

// buildSessionOptions constructs session manager configuration options
func buildSessionOptions(flags Flags) []session.ManagerOption {
	var opts []session.ManagerOption
	if *flags.sessionTTLMin > 0 {
		opts = append(opts, session.WithTTL(time.Duration(*flags.sessionTTLMin)*time.Minute))
	}
	return opts
}

// buildBookingOptions constructs booking machine configuration options
func buildBookingOptions(flags Flags) []flow.BookingOption {
	var opts []flow.BookingOption
	if *flags.reminderSec > 0 {
		opts = append(opts, flow.WithReminderDelay(time.Duration(*flags.reminderSec)*time.Second))
	}
	return opts
}

// buildEngineOptions constructs conversation engine configuration options
func buildEngineOptions(flags Flags) []bot.EngineOption {
	var opts []bot.EngineOption
	if *flags.replyDelaySec > 0 {
		opts = append(opts, bot.WithReplyDelay(time.Duration(*flags.replyDelaySec)*time.Second))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{
		api.WithVerifyToken(*flags.verifyToken),
	}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.appSecret != "" {
		apiOpts = append(apiOpts, api.WithAppSecret(*flags.appSecret))
	}
	if *flags.sweepCron != "" {
		apiOpts = append(apiOpts, api.WithSweepSchedule(*flags.sweepCron))
	}
	if *flags.summaryCron != "" {
		apiOpts = append(apiOpts, api.WithSummarySchedule(*flags.summaryCron))
	}
	return apiOpts
}

// run wires all modules together and serves until interrupted.
func run(flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	gen, err := genai.NewClient(*flags.openaiKey)
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(flags)
	if err != nil {
		return err
	}
	defer closeNotifier()

	sessions := session.NewManager(buildSessionOptions(flags)...)
	sender := messenger.NewClient(*flags.pageAccessToken)

	// The booking machine needs a way to send reminders, but the engine that
	// sends them is built afterwards. The closure binds late on purpose.
	var engine *bot.Engine
	remind := func(ctx context.Context, userID, text string) {
		if engine != nil {
			engine.SendDirect(ctx, userID, text)
		}
	}

	machine := flow.NewBookingMachine(flow.NewSimpleTimer(), st, notifier, remind, buildBookingOptions(flags)...)
	router := flow.NewRouter(machine, flow.NewPriceTable(), gen)
	engine = bot.NewEngine(sessions, router, sender, st, buildEngineOptions(flags)...)

	server := api.NewServer(engine, sessions, st, notifier, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
