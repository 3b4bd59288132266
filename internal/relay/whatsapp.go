package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/ah3edsaad3-bit/clinic-bot/internal/store"
)

// Constants for the whatsmeow-backed notifier.
const (
	// DefaultWhatsmeowPath is the default SQLite path for the whatsmeow
	// session database.
	DefaultWhatsmeowPath = "/var/lib/clinic-bot/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users.
	JIDSuffix = "s.whatsapp.net"
)

// WhatsmeowOpts holds configuration options for the whatsmeow notifier.
type WhatsmeowOpts struct {
	DBDSN         string // whatsmeow session database connection string
	OperatorPhone string // operator number in international digits, no plus
	QRPath        string // path to write the login QR code
	NumericCode   bool   // use numeric login code instead of QR code
}

// WhatsmeowOption defines a configuration option for the whatsmeow notifier.
type WhatsmeowOption func(*WhatsmeowOpts)

// WithDBDSN sets the whatsmeow session database connection string.
func WithDBDSN(dsn string) WhatsmeowOption {
	return func(o *WhatsmeowOpts) { o.DBDSN = dsn }
}

// WithOperatorPhone sets the operator number notifications go to.
func WithOperatorPhone(phone string) WhatsmeowOption {
	return func(o *WhatsmeowOpts) { o.OperatorPhone = phone }
}

// WithQRCodeOutput writes the login QR code to the specified path instead of
// stdout.
func WithQRCodeOutput(path string) WhatsmeowOption {
	return func(o *WhatsmeowOpts) { o.QRPath = path }
}

// WithNumericCode uses a numeric login code instead of a QR code.
func WithNumericCode() WhatsmeowOption {
	return func(o *WhatsmeowOpts) { o.NumericCode = true }
}

// WhatsmeowNotifier delivers operator notifications from the clinic's own
// WhatsApp account via whatsmeow.
type WhatsmeowNotifier struct {
	waClient *whatsmeow.Client
	toJID    types.JID
}

// NewWhatsmeowNotifier creates and connects a whatsmeow-backed notifier.
// First run requires a QR login; the session persists in the whatsmeow
// database afterwards.
func NewWhatsmeowNotifier(opts ...WhatsmeowOption) (*WhatsmeowNotifier, error) {
	var cfg WhatsmeowOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.OperatorPhone == "" {
		return nil, fmt.Errorf("operator phone must be provided")
	}

	dbDSN := cfg.DBDSN
	if dbDSN == "" {
		dbDSN = DefaultWhatsmeowPath
		slog.Debug("No whatsmeow database DSN provided, using default SQLite path", "default_path", dbDSN)
	}

	// Auto-detect database driver based on DSN
	var dbDriver string
	if store.DetectDSNType(dbDSN) == "postgres" {
		dbDriver = "postgres"
	} else {
		dbDriver = "sqlite3"
		if !strings.Contains(dbDSN, "_foreign_keys") && !strings.Contains(dbDSN, "foreign_keys") {
			slog.Warn("SQLite database for whatsmeow does not appear to have foreign keys enabled. "+
				"The whatsmeow library strongly recommends enabling foreign keys for data integrity.",
				"dsn_example", "file:"+dbDSN+"?_foreign_keys=on")
		}
	}

	slog.Debug("WhatsmeowNotifier initializing DB store", "driver", dbDriver)
	logger := waLog.Stdout("Database", "INFO", true)
	ctx := context.Background()
	container, err := sqlstore.New(ctx, dbDriver, dbDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize whatsmeow database store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from whatsmeow store: %w", err)
	}

	clientLog := waLog.Stdout("Client", "INFO", true)
	waClient := whatsmeow.NewClient(deviceStore, clientLog)

	if waClient.Store.ID == nil {
		slog.Info("WhatsApp login required; starting QR code flow")
		qrChan, _ := waClient.GetQRChannel(context.Background())
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
		}
		writer := io.Writer(os.Stdout)
		if cfg.QRPath != "" {
			f, ferr := os.Create(cfg.QRPath)
			if ferr != nil {
				return nil, fmt.Errorf("failed to create QR file: %w", ferr)
			}
			defer f.Close()
			writer = f
		}
		for evt := range qrChan {
			if evt.Event == "code" {
				if cfg.NumericCode {
					fmt.Fprintln(writer, evt.Code)
				} else {
					qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
				}
			} else {
				slog.Debug("WhatsApp login event", "event", evt.Event)
			}
		}
	} else {
		slog.Debug("WhatsApp already logged in, connecting to server")
		if err := waClient.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
		}
	}

	slog.Info("WhatsmeowNotifier connected", "operator", cfg.OperatorPhone)
	return &WhatsmeowNotifier{
		waClient: waClient,
		toJID:    types.NewJID(cfg.OperatorPhone, JIDSuffix),
	}, nil
}

// Notify sends one WhatsApp message to the operator JID.
func (n *WhatsmeowNotifier) Notify(ctx context.Context, text string) error {
	if n.waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	if text == "" {
		return fmt.Errorf("notification text cannot be empty")
	}

	msg := &waE2E.Message{Conversation: &text}
	if _, err := n.waClient.SendMessage(ctx, n.toJID, msg); err != nil {
		slog.Error("WhatsmeowNotifier.Notify failed", "error", err)
		return fmt.Errorf("failed to send notification: %w", err)
	}

	slog.Debug("WhatsmeowNotifier.Notify delivered")
	return nil
}

// Disconnect closes the WhatsApp connection.
func (n *WhatsmeowNotifier) Disconnect() {
	if n.waClient != nil {
		n.waClient.Disconnect()
	}
}
