package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"readi/internal/api"
	"readi/internal/auth"
	"readi/internal/calexport"
	"readi/internal/config"
	"readi/internal/google"
	"readi/internal/prep"
	"readi/internal/profile"
	"readi/internal/store"
	"readi/internal/syncer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "readi",
		Usage: "Meeting preparation backend for Google Calendar and Gmail.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Optional config file (yaml, json, toml or env)."},
		},
		Commands: []*cli.Command{
			serveCommand(),
			authCommand(),
			syncCommand(),
			publishCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built from the configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	issuer  *auth.Issuer
	oauth   *google.OAuth
	factory *google.Factory
	prep    *prep.Service
	syncer  *syncer.Syncer
}

// newApp wires the services. withTokens is set by commands that issue API
// tokens; the others run without a JWT secret and leave issuer nil.
func newApp(c *cli.Context, withTokens bool) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := checkConfig(cfg, withTokens); err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	st, err := store.Open(c.Context, logger, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	var issuer *auth.Issuer
	if withTokens {
		if issuer, err = auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL); err != nil {
			st.Close()
			return nil, err
		}
	}
	oauth, err := google.NewOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to get google oauth config: %w", err)
	}

	var generator prep.Generator = prep.StaticGenerator{}
	if cfg.GeminiAPIKey != "" {
		if generator, err = prep.NewGenAIGenerator(c.Context, logger, cfg.GeminiAPIKey, cfg.AIModel, nil); err != nil {
			st.Close()
			return nil, err
		}
	} else {
		logger.Warn("No Gemini API key configured, talking points will be static.")
	}

	factory := google.NewFactory(logger, oauth, st)
	prepSvc := prep.NewService(logger, st, generator)
	sy := syncer.New(logger, st, syncer.GoogleClients(factory), prepSvc, syncer.Options{
		Concurrency:  cfg.SyncConcurrency,
		PrepLeadTime: cfg.PrepLeadTime,
	})

	return &app{
		cfg: cfg, logger: logger, store: st, issuer: issuer, oauth: oauth,
		factory: factory, prep: prepSvc, syncer: sy,
	}, nil
}

func checkConfig(cfg *config.Config, withTokens bool) error {
	err := cfg.Validate()
	if withTokens {
		err = errors.Join(err, cfg.ValidateAuth())
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (a *app) authService() *auth.Service {
	return auth.NewService(a.logger, a.oauth, a.store, a.issuer)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and background sync workers.",
		Action: func(c *cli.Context) error {
			a, err := newApp(c, true)
			if err != nil {
				return err
			}
			defer a.store.Close()

			srv := api.NewServer(a.logger, api.Deps{
				Store:    a.store,
				Issuer:   a.issuer,
				Auth:     a.authService(),
				Profiles: profile.NewService(a.logger, a.store),
				Prep:     a.prep,
				Syncer:   a.syncer,
				Watcher:  api.GoogleWatcher(a.factory),
			}, api.Options{
				WebURL:       a.cfg.WebURL,
				IOSAppScheme: a.cfg.IOSAppScheme,
				WebhookURL:   a.cfg.WebhookURL,
				WebhookToken: a.cfg.WebhookToken,
				AccessLog:    os.Stderr,
			})
			httpServer := &http.Server{
				Addr:              a.cfg.Addr(),
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("Server listening.", "addr", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				a.syncer.Run(ctx)
				return nil
			})
			if a.cfg.SyncInterval > 0 {
				g.Go(func() error {
					a.logger.Info("Starting watcher.", "interval", a.cfg.SyncInterval)
					a.syncer.Watch(ctx, a.cfg.SyncInterval)
					return nil
				})
			}
			g.Go(func() error {
				<-ctx.Done()
				a.logger.Info("Shutting down.")
				a.syncer.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in with a Google account from the terminal and print an API token.",
		Action: func(c *cli.Context) error {
			a, err := newApp(c, true)
			if err != nil {
				return err
			}
			defer a.store.Close()
			a.logger.Info("Starting Google authentication flow.")

			authURL, err := a.authService().AuthURL()
			if err != nil {
				return err
			}
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			code, _ := reader.ReadString('\n')

			user, token, err := a.authService().SignIn(c.Context, strings.TrimSpace(code))
			if err != nil {
				return fmt.Errorf("unable to complete sign-in: %w", err)
			}
			a.logger.Info("Successfully authenticated.", "userID", user.ID, "email", user.Email)
			fmt.Println(token)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync calendars and mailboxes, link emails and prepare upcoming meetings.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "Only sync this user ID. Defaults to every user with a Google token."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run sync every N seconds."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c, false)
			if err != nil {
				return err
			}
			defer a.store.Close()

			run := func(ctx context.Context) error {
				if id := c.String("user"); id != "" {
					_, err := a.syncer.SyncUser(ctx, id)
					return err
				}
				return a.syncer.SyncAll(ctx)
			}

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				if interval <= 0 {
					return fmt.Errorf("--watch must be positive, got %d", c.Int("watch"))
				}
				ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()
				a.logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := run(ctx); err != nil {
						a.logger.Error("Sync cycle failed", "error", err)
					}
					select {
					case <-ctx.Done():
						return nil
					case <-ticker.C:
					}
				}
			}

			a.logger.Info("Running a single sync cycle.")
			if err := run(c.Context); err != nil {
				return fmt.Errorf("single sync cycle failed: %w", err)
			}
			return nil
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish a user's upcoming meetings with talking points to a CalDAV calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: "User ID whose meetings are published."},
			&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum number of upcoming meetings."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c, false)
			if err != nil {
				return err
			}
			defer a.store.Close()
			if err := a.cfg.ValidateCalDAV(); err != nil {
				return err
			}

			publisher, err := calexport.NewPublisher(c.Context, a.logger, a.cfg.CalDAVEndpoint,
				a.cfg.CalDAVUsername, a.cfg.CalDAVPassword, a.cfg.CalDAVCalendar)
			if err != nil {
				return fmt.Errorf("failed to create caldav publisher: %w", err)
			}
			meetings, err := a.store.UpcomingMeetings(c.Context, c.String("user"), time.Now(), c.Int("limit"))
			if err != nil {
				return err
			}
			n, err := publisher.Publish(c.Context, meetings)
			if err != nil {
				return fmt.Errorf("publish failed after %d meetings: %w", n, err)
			}
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
