package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/auth"
	"github.com/jason-s-yu/partygames/internal/config"
	"github.com/jason-s-yu/partygames/internal/database"
	"github.com/jason-s-yu/partygames/internal/handlers"
	"github.com/jason-s-yu/partygames/internal/hub"
	"github.com/jason-s-yu/partygames/internal/sweeper"
	_ "github.com/joho/godotenv/autoload"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		cfg      config.Config
		logger   *logrus.Logger
		injector *do.Injector
	)

	app := &cli.App{
		Name:  "partygames",
		Usage: "live party-trivia session server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Usage: "postgres or memory (overrides STORE)"},
		},
		Before: func(c *cli.Context) error {
			cfg = config.Load()
			if c.IsSet("store") {
				cfg.Store = c.String("store")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			var err error
			if logger, err = cfg.NewLogger(); err != nil {
				return err
			}
			injector = NewContainer(cfg, logger)
			return nil
		},
		After: func(c *cli.Context) error {
			if injector != nil {
				return injector.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP and websocket server with the expiry sweeper",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Usage: "listen port (overrides PORT)"},
					&cli.StringFlag{Name: "seed", Usage: "JSON content file loaded before serving"},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet("port") {
						cfg.Port = c.String("port")
					}
					if path := c.String("seed"); path != "" {
						if err := seedFile(c.Context, injector, path); err != nil {
							return err
						}
					}
					return serve(c.Context, cfg, injector, logger)
				},
			},
			{
				Name:  "migrate",
				Usage: "apply the database schema",
				Action: func(c *cli.Context) error {
					pool, err := do.Invoke[pgPool](injector)
					if err != nil {
						return err
					}
					if err := database.Migrate(c.Context, pool.Pool); err != nil {
						return err
					}
					logger.Info("schema applied")
					return nil
				},
			},
			{
				Name:      "seed",
				Usage:     "load packages, questions and riddles from a JSON content file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("seed needs exactly one content file", 2)
					}
					return seedFile(c.Context, injector, c.Args().First())
				},
			},
			{
				Name:  "sweep",
				Usage: "run one expiry pass and exit",
				Action: func(c *cli.Context) error {
					sw, err := do.Invoke[*sweeper.Sweeper](injector)
					if err != nil {
						return err
					}
					res, err := sw.RunOnce(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("expired %d sessions and %d purchases\n", res.Sessions, res.Purchases)
					return nil
				},
			},
			{
				Name:  "token",
				Usage: "issue a host token, or a payment service token with --role payments",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "user id; a new one is generated when empty"},
					&cli.StringFlag{Name: "role", Usage: "role claim; only \"payments\" is recognised"},
				},
				Action: func(c *cli.Context) error {
					userID := uuid.New()
					if v := c.String("user"); v != "" {
						var err error
						if userID, err = uuid.Parse(v); err != nil {
							return fmt.Errorf("invalid user id: %w", err)
						}
					}
					signer, err := do.Invoke[*auth.Signer](injector)
					if err != nil {
						return err
					}
					role := c.String("role")
					if role != "" && role != auth.RolePayments {
						return cli.Exit(fmt.Sprintf("unknown role %q", role), 2)
					}
					token, err := signer.CreateRoleJWT(userID, role)
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func seedFile(ctx context.Context, injector *do.Injector, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	pkgs, err := database.ReadSeed(f)
	if err != nil {
		return err
	}
	st, err := do.Invoke[store](injector)
	if err != nil {
		return err
	}
	if err := database.Seed(ctx, st, pkgs); err != nil {
		return err
	}
	do.MustInvoke[logrus.FieldLogger](injector).WithField("packages", len(pkgs)).Info("content seeded")
	return nil
}

// serve runs the HTTP server, the pub/sub bridge and the sweeper until a signal arrives
// or one of them fails.
func serve(ctx context.Context, cfg config.Config, injector *do.Injector, logger *logrus.Logger) error {
	api, err := do.Invoke[*handlers.APIServer](injector)
	if err != nil {
		return err
	}
	bridge := do.MustInvoke[*hub.RedisBridge](injector)
	sw := do.MustInvoke[*sweeper.Sweeper](injector)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// sockets end with the group so Shutdown is not held up by hijacked connections
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return bridge.Run(gctx)
	})
	g.Go(func() error {
		return sw.Run(gctx)
	})

	return g.Wait()
}
