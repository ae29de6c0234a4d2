package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"

	"github.com/vovakirdan/storefront-realtime-go/chat"
	"github.com/vovakirdan/storefront-realtime-go/credential"
	"github.com/vovakirdan/storefront-realtime-go/internal/app"
	"github.com/vovakirdan/storefront-realtime-go/internal/config"
	"github.com/vovakirdan/storefront-realtime-go/internal/logging"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui"
	"github.com/vovakirdan/storefront-realtime-go/realtime"
	"github.com/vovakirdan/storefront-realtime-go/realtime/rest"
)

type flags struct {
	configPath string
	admin      bool
	userID     string
	orderID    string
	promptKey  bool
	noWS       bool
}

func parseFlags() flags {
	var f flags
	pflag.StringVarP(&f.configPath, "config", "c", config.DefaultPath(), "path to the YAML config file")
	pflag.BoolVar(&f.admin, "admin", false, "watch the back office channel instead of a customer channel")
	pflag.StringVarP(&f.userID, "user-id", "u", "", "customer id for the user channel (defaults to the stored user)")
	pflag.StringVarP(&f.orderID, "order", "o", "", "open the chat widget for this order")
	pflag.BoolVar(&f.promptKey, "prompt-key", false, "ask for the admin key instead of reading it from config")
	pflag.BoolVar(&f.noWS, "no-ws", false, "do not open the broadcast WebSocket")
	pflag.Parse()
	return f
}

func main() {
	if err := run(parseFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Debug("configuration loaded", "config", cfg.String())
	rtLogger := realtime.NewSlogLogger(logger)

	creds, err := credential.Open(credential.Config{
		ServiceName: cfg.Keyring.Service,
		FileDir:     cfg.Keyring.FileDir,
	})
	if err != nil {
		return err
	}

	if f.admin {
		key := cfg.Admin.Key
		if f.promptKey || key == "" {
			if key, err = promptAdminKey(); err != nil {
				return err
			}
		}
		creds.SetAdminKey(key)
	}

	userID := f.userID
	if !f.admin && userID == "" {
		user, err := creds.User()
		if err != nil {
			return err
		}
		if user == nil {
			return errors.New("no stored user: pass --user-id or sign in first")
		}
		userID = user.ID
	}

	sdk := cfg.SDK()
	api := rest.NewClient(sdk.APIBaseURL, creds)
	api.SetHTTPClient(&http.Client{Timeout: cfg.API.Timeout})

	sse := realtime.NewSSEClient(sdk, creds, nil, realtime.WithLogger(rtLogger))
	defer sse.Close()

	toasts := ui.NewToastQueue()
	var ws *realtime.WSClient
	if !f.noWS {
		ws = realtime.NewWSClient(sdk, realtime.WithLogger(rtLogger), realtime.WithToaster(toasts))
		defer ws.Close()
	}

	if f.admin {
		err = sse.ConnectAdmin()
	} else {
		if err := creds.EnsureFresh(context.Background(), api); err != nil {
			return err
		}
		err = sse.ConnectUser(userID)
	}
	if err != nil {
		return fmt.Errorf("connecting to the event stream: %w", err)
	}

	svc := app.Services{
		Store:  sse.Store(),
		SSE:    sse,
		Toasts: toasts,
		Admin:  f.admin,
	}
	if ws != nil {
		svc.WS = ws
	}

	if f.orderID != "" {
		widget := chat.NewWidget(f.orderID, api, sse, chat.WithAdmin(f.admin), chat.WithLogger(rtLogger))
		if err := widget.Mount(context.Background()); err != nil && !rest.IsNotFound(err) {
			logger.Warn("chat unavailable", "order_id", f.orderID, "error", err)
		}
		defer widget.Unmount()
		svc.Chat = widget
	}

	model := app.New(svc)
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// newLogger writes to the configured file so log lines do not tear the
// screen. Without a file only errors reach stderr.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	lc.Environment = cfg.App.Environment

	if cfg.Logging.File == "" {
		lc.Level = "error"
		return logging.NewLogger(lc), func() {}, nil
	}

	file, err := logging.OpenFile(cfg.Logging.File)
	if err != nil {
		return nil, nil, err
	}
	lc.Output = file
	return logging.NewLogger(lc), func() { _ = file.Close() }, nil
}

func promptAdminKey() (string, error) {
	var key string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Admin API key").
				Description("Used for the back office event stream and admin endpoints").
				EchoMode(huh.EchoModePassword).
				Value(&key).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("admin key is required")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("reading admin key: %w", err)
	}
	return strings.TrimSpace(key), nil
}
