package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	taskserver "github.com/opentask/taskin/internal/server"
	"github.com/opentask/taskin/internal/syncserver"
)

// shutdownTimeout bounds the graceful stop of the sync server.
const shutdownTimeout = 10 * time.Second

func serveCmd(a *app) *cobra.Command {
	var (
		host       string
		port       int
		maxClients int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket sync server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := syncserver.Options{
				Host:              a.cfg.Server.Host,
				Port:              a.cfg.Server.Port,
				MaxClients:        a.cfg.Server.MaxClients,
				HeartbeatInterval: a.cfg.Server.HeartbeatInterval,
				Logger:            a.logger.WithPrefix("sync"),
			}
			if cmd.Flags().Changed("host") {
				opts.Host = host
			}
			if cmd.Flags().Changed("port") {
				opts.Port = port
			}
			if cmd.Flags().Changed("max-clients") {
				opts.MaxClients = maxClients
			}
			if !a.cfg.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			store, err := a.fileStore()
			if err != nil {
				return err
			}
			m, closeJournal := a.manager(store, true)
			defer closeJournal()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := syncserver.New(store, m, opts)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ws://%s/ws %s\n",
				okStyle.Render("Sync server listening on"), srv.Addr(), mutedStyle.Render("(Ctrl+C to stop)"))

			<-ctx.Done()
			a.logger.Info("shutting down")

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Bind host (default from config: server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Port (default from config: server.port)")
	cmd.Flags().IntVar(&maxClients, "max-clients", 0, "Connection ceiling (default from config: server.max_clients)")
	return cmd
}

func mcpCmd(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP bridge on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.storage(cmd.Context(), remote)
			if err != nil {
				return err
			}
			defer closeStore()

			m, closeJournal := a.manager(store, !remote)
			defer closeJournal()

			taskserver.Version = a.version
			s := taskserver.New(store, m)
			a.logger.Debug("mcp bridge on stdio", "root", a.root)
			return mcpserver.ServeStdio(s)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Serve tasks from the sync server instead of the local directory")
	return cmd
}
