package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/server"
	"github.com/KaramelBytes/usageql-cli/internal/unify"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question API over HTTP",
	Long: `Ingests the data, then serves POST /api/query and the catalog, table and
summary endpoints until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var summary *unify.Summary
		if s.Result != nil {
			summary = &s.Result.Summary
		}
		h := server.New(server.Options{
			Router:         s.Router,
			Tables:         s.Backend,
			Summary:        summary,
			Logger:         s.Log,
			RateLimitRPS:   c.RateLimitRPS,
			RateLimitBurst: c.RateLimitBurst,
		})
		addr := c.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if addr == "" {
			addr = ":8080"
		}
		s.Log.Info("serving", zap.String("addr", addr), zap.String("backend", c.BackendKind))
		return server.ListenAndServe(ctx, addr, h, s.Log)
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
}
