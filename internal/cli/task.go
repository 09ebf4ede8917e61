package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskloop/taskloop/internal/config"
	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/notify"
	"github.com/taskloop/taskloop/internal/recur"
	"github.com/taskloop/taskloop/internal/store"
)

var (
	addDescription string
	addCategory    string
	addPriority    string
	addDue         string
	addRemind      bool

	listCategory string
	listSeries   string
	listPending  bool

	rmScope string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
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

		in := store.NewTask{
			Title:           strings.Join(args, " "),
			Description:     addDescription,
			Category:        model.Category(defaulted(addCategory, string(model.CategoryPersonal))),
			Priority:        model.Priority(defaulted(addPriority, string(model.PriorityMedium))),
			ReminderEnabled: addRemind,
		}
		if addDue != "" {
			due, parseErr := parseWhen(addDue)
			if parseErr != nil {
				return parseErr
			}
			in.DueDate = &due
		}

		task, err := st.Add(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s  %s\n", task.ID, task.Title)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
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

		tasks := st.List(store.Filter{
			Category: model.Category(listCategory),
			SeriesID: listSeries,
			Pending:  listPending,
		})
		for _, t := range tasks {
			printTask(cmd, t)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tasks\n", len(tasks))
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			task, err := st.Complete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "done %s  %s\n", task.ID, task.Title)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task; for a recurring instance --scope widens the delete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			task, err := st.Get(args[0])
			if err != nil {
				return err
			}
			if task.SeriesID == "" || rmScope == string(recur.ScopeThis) {
				if task.SeriesID != "" {
					removed, delErr := st.DeleteSeries(cmd.Context(), task.SeriesID, recur.ScopeThis, task.ID)
					if delErr != nil {
						return delErr
					}
					propagateRemoteDeletes(cmd.Context(), cfg, st, removed)
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d instance\n", len(removed))
					return nil
				}
				if delErr := st.Delete(cmd.Context(), task.ID); delErr != nil {
					return delErr
				}
				propagateRemoteDeletes(cmd.Context(), cfg, st, []model.Task{task})
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", task.ID)
				return nil
			}

			removed, err := st.DeleteSeries(cmd.Context(), task.SeriesID, recur.Scope(rmScope), task.ID)
			if err != nil {
				return err
			}
			propagateRemoteDeletes(cmd.Context(), cfg, st, removed)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d instances\n", len(removed))
			return nil
		})
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <id>",
	Short: "Skip a recurring instance without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			task, err := st.SkipInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "skipped %s  %s\n", task.ID, task.Title)
			return nil
		})
	},
}

var unskipCmd = &cobra.Command{
	Use:   "unskip <id>",
	Short: "Restore a skipped instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			task, err := st.UnskipInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s  %s\n", task.ID, task.Title)
			return nil
		})
	},
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "desc", "d", "", "Task description")
	addCmd.Flags().StringVarP(&addCategory, "category", "c", "", "Category: personal|work|shopping|health")
	addCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "Priority: low|medium|high")
	addCmd.Flags().StringVar(&addDue, "due", "", "Due date (2006-01-02 or RFC3339)")
	addCmd.Flags().BoolVar(&addRemind, "remind", false, "Schedule a due-date notification")

	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Filter by category")
	listCmd.Flags().StringVar(&listSeries, "series", "", "Filter by series id")
	listCmd.Flags().BoolVar(&listPending, "pending", false, "Only pending work")

	rmCmd.Flags().StringVar(&rmScope, "scope", "this", "Delete scope for recurring instances: this|future|all")
}

func withStore(cmd *cobra.Command, fn func(*store.Store, *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, cleanup, err := openStore(cmd, cfg, notify.Nop{})
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(st, cfg)
}

func printTask(cmd *cobra.Command, t model.Task) {
	mark := " "
	if t.Completed {
		mark = "x"
	} else if t.Skipped {
		mark = "-"
	}
	due := ""
	if t.DueDate != nil {
		due = "  due " + t.DueDate.Local().Format("2006-01-02 15:04")
	}
	series := ""
	if t.SeriesID != "" {
		series = "  series " + shortID(t.SeriesID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s  %s (%s/%s)%s%s\n",
		mark, shortID(t.ID), t.Title, t.Category, t.Priority, due, series)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func parseWhen(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

func defaulted(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
