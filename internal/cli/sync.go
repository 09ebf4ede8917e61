package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskloop/taskloop/internal/config"
	"github.com/taskloop/taskloop/internal/notify"
	syncengine "github.com/taskloop/taskloop/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync attempt against the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		st, cleanup, err := openStore(cmd, cfg, notify.Nop{})
		if err != nil {
			return err
		}
		defer cleanup()

		engine, err := newSyncEngine(cfg, st)
		if err != nil {
			return err
		}
		res, err := engine.Sync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d, merged %d, uploaded %d in %s\n",
			res.Downloaded, res.Merged, res.Uploaded, res.Duration.Round(time.Millisecond))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run periodic sync and local due-date notifications until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		notifier := notify.NewLocal(cfg.Notify.Lead, 16)
		notifier.Start()
		defer notifier.Stop()

		st, cleanup, err := openStore(cmd, cfg, notifier)
		if err != nil {
			return err
		}
		defer cleanup()

		engine, err := newSyncEngine(cfg, st)
		if err != nil {
			return err
		}
		periodic, err := syncengine.NewPeriodic(engine, cfg.Sync.Interval)
		if err != nil {
			return err
		}
		periodic.Start()
		defer periodic.Stop()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		log.Printf("watching; sync every %s, notification lead %s", cfg.Sync.Interval, cfg.Notify.Lead)

		for {
			select {
			case ev, ok := <-notifier.C():
				if !ok {
					return nil
				}
				log.Printf("due soon: %s (due %s)", ev.Title, ev.DueAt.Local().Format("15:04"))
			case <-stop:
				return nil
			}
		}
	},
}
