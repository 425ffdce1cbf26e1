package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/justestif/muse/internal/auth"
	"github.com/justestif/muse/internal/capsule"
	"github.com/justestif/muse/internal/catalog"
	"github.com/justestif/muse/internal/closet"
	"github.com/justestif/muse/internal/config"
	"github.com/justestif/muse/internal/db"
	"github.com/justestif/muse/internal/logger"
	"github.com/justestif/muse/internal/mailer"
	"github.com/justestif/muse/internal/storage"
	"github.com/justestif/muse/internal/waitlist"
	"github.com/justestif/muse/internal/web"
	webfs "github.com/justestif/muse/web"
)

type serveFlags struct {
	configPath  string
	catalogPath string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.configPath, "config", "muse.yaml", "Path to the YAML config file")
	cmd.Flags().StringVar(&flags.catalogPath, "catalog", "", "Load the catalog from this YAML file instead of the built-in one")
	return cmd
}

func runServe(ctx context.Context, flags serveFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	cat, err := loadCatalog(flags.catalogPath)
	if err != nil {
		return err
	}

	backend, closeBackend, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeBackend()

	var (
		waitlistStore waitlist.Store = waitlist.NewMemoryStore()
		sessions      web.SessionManager
	)
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		waitlistStore = waitlist.NewPostgresStore(database)
		sessions = web.NewDBSessionStore(database)
		log.Info("using postgres for waitlist and sessions")
	} else {
		sessions = web.NewSessionStore()
		log.Warn("DATABASE_URL not set, waitlist and sessions are kept in memory")
	}

	dispatcher, err := newDispatcher(cfg.Mail, log)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	service := waitlist.NewService(waitlistStore,
		waitlist.WithNotifier(dispatcher),
		waitlist.WithLogger(log),
	)

	var signInWaitlist auth.Waitlist = service
	if cfg.Auth.WaitlistURL != "" {
		signInWaitlist = waitlist.NewClient(cfg.Auth.WaitlistURL)
		log.Info("sign-in uses remote waitlist", "url", cfg.Auth.WaitlistURL)
	}

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		log.Warn("SESSION_SECRET not set, device cookies will not survive a restart")
	}
	devices, err := web.NewDeviceTokens(secret)
	if err != nil {
		return err
	}

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	serverCfg := web.ServerConfig{
		Addr:            cfg.Server.Addr,
		BaseURL:         cfg.Server.BaseURL,
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second),
		SessionSweep:    config.Duration(cfg.Server.SessionSweep, time.Hour),
		Logger:          log,
		Catalog:         cat,
		Closets:         closet.NewStore(backend, closet.NewHub(), closet.WithLogger(log)),
		Waitlist:        service,
		SignIn:          auth.NewSignIn(signInWaitlist, log),
		Sessions:        sessions,
		Devices:         devices,
		Capsules:        capsule.DefaultConfig(),
		TemplatesFS:     templates,
		StaticFS:        static,
	}

	if cfg.GoogleEnabled() {
		redirectURL := strings.TrimRight(cfg.Server.BaseURL, "/") + web.CallbackPath
		google, err := auth.NewGoogle(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, redirectURL)
		if err != nil {
			return err
		}
		serverCfg.Provider = google
	} else {
		log.Warn("Google sign-in disabled", "error", auth.ErrMissingCredentials)
	}

	server, err := web.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run(ctx)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// openStorage builds the configured client-state backend and its cleanup.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, func(), error) {
	switch cfg.Backend {
	case config.StorageFile:
		return storage.NewFileStorage(cfg.Dir), func() {}, nil
	case config.StorageRedis:
		r, err := storage.NewRedisStorage(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return storage.NewMemoryStorage(), func() {}, nil
	}
}

// newDispatcher sends welcome mail through SendGrid when enabled and
// through the log otherwise.
func newDispatcher(cfg config.MailConfig, log *logger.Logger) (*mailer.Dispatcher, error) {
	var m mailer.Mailer = mailer.NewLogMailer(log)
	if cfg.Enabled {
		sg, err := mailer.NewSendGridMailer(mailer.SendGridConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, log)
		if err != nil {
			return nil, err
		}
		m = sg
	}
	return mailer.NewDispatcher(m, log,
		mailer.WithWorkers(cfg.Workers),
		mailer.WithQueueSize(cfg.QueueSize),
		mailer.WithSendTimeout(config.Duration(cfg.SendTimeout, mailer.DefaultSendTimeout)),
	), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
