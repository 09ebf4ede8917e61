package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/taskloop/taskloop/internal/config"
	"github.com/taskloop/taskloop/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if len(cfg.Server.Tokens) == 0 {
			return fmt.Errorf("server.tokens is empty; no client could authenticate")
		}

		db, err := server.OpenDB(cfg.Server.Database)
		if err != nil {
			return err
		}
		srv := server.NewServer(db, cfg.Server.Tokens)
		log.Printf("sync server listening on %s", cfg.Server.Addr)
		return srv.Run(cfg.Server.Addr)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalPath()
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
