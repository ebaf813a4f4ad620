package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/server"
	"github.com/DachengChen/shelfcare/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr, redisURL string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboards and chat over HTTP",
		Long: `Serve GET /inventory, /orders, /expiry, POST /chat, /health and
/metrics. Chat sessions are kept in memory, or in Redis with --redis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Nobody is at a terminal to answer ask_human over HTTP.
			d, err := bootstrap(ctx, root, bootOptions{human: agent.NoHuman{}, console: true, deferIndex: true})
			if err != nil {
				return err
			}
			defer d.Close()

			if addr == "" {
				addr = d.cfg.Server.Addr
			}
			if redisURL == "" {
				redisURL = d.cfg.Server.RedisURL
			}
			ttl := time.Duration(d.cfg.Server.SessionTTLMinutes) * time.Minute

			var sessions session.Store
			if redisURL != "" {
				rs, err := session.NewRedisStore(ctx, redisURL, ttl)
				if err != nil {
					return err
				}
				defer rs.Close()
				sessions = rs
				d.logger.Info().Msg("sessions stored in redis")
			} else {
				sessions = session.NewMemoryStore(ttl)
			}

			srv := server.New(server.Deps{
				Dashboard: d.db,
				Chat:      session.NewManager(sessions, d.agent),
				Ping:      d.db.SQL.PingContext,
			}, d.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx, addr)
			})
			g.Go(func() error {
				start := time.Now()
				if err := d.selector.Index(gctx); err != nil {
					if gctx.Err() == nil {
						d.logger.Warn().Err(err).Msg("example index not built")
					}
					return nil
				}
				d.logger.Info().Dur("took", time.Since(start)).Msg("example index ready")
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :5000)")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for chat sessions, e.g. redis://localhost:6379/0")
	return cmd
}
