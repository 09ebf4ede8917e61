package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskloop/taskloop/internal/config"
	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/notify"
	"github.com/taskloop/taskloop/internal/remote"
	"github.com/taskloop/taskloop/internal/storage"
	"github.com/taskloop/taskloop/internal/store"
	syncengine "github.com/taskloop/taskloop/internal/sync"
)

var rootCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "taskloop",
		Short: "taskloop - recurring tasks with local-first sync",
		Long: `taskloop keeps a local task collection with recurring series and
reconciles it against a sync server using per-task modification timestamps.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func Execute(version string) error {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(unskipCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// openStore wires the persistence collaborator into a store. The returned
// cleanup closes the database.
func openStore(cmd *cobra.Command, cfg *config.Config, notifier notify.Notifier) (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	repo, err := storage.OpenSQLite(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cmd.Context(), repo, notifier)
	if err != nil {
		_ = repo.Close()
		return nil, nil, err
	}
	return st, func() { _ = repo.Close() }, nil
}

func newSyncEngine(cfg *config.Config, st *store.Store) (*syncengine.Engine, error) {
	if cfg.Remote.URL == "" {
		return nil, fmt.Errorf("remote.url is not configured")
	}
	client := remote.NewClient(cfg.Remote.URL, cfg.Remote.Token)
	return syncengine.NewEngine(st, client, syncengine.Policy(cfg.Sync.Policy))
}

// propagateRemoteDeletes soft-deletes removed tasks on the remote store so
// the next merge cannot resurrect them. Local removal is already committed;
// remote failures are logged, never surfaced.
func propagateRemoteDeletes(ctx context.Context, cfg *config.Config, st *store.Store, removed []model.Task) {
	if cfg.Remote.URL == "" || len(removed) == 0 {
		return
	}
	engine, err := newSyncEngine(cfg, st)
	if err != nil {
		log.Printf("remote delete skipped: %v", err)
		return
	}
	for _, t := range removed {
		if err := engine.DeleteRemote(ctx, t.ID); err != nil {
			log.Printf("remote delete %s: %v", t.ID, err)
		}
	}
}
