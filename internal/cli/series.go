package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskloop/taskloop/internal/config"
	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/recur"
	"github.com/taskloop/taskloop/internal/store"
)

var (
	seriesTitle       string
	seriesDescription string
	seriesCategory    string
	seriesPriority    string
	seriesRemind      bool
	seriesFreq        string
	seriesInterval    int
	seriesStart       string
	seriesEnd         string
	seriesCount       int

	seriesScope string
	seriesRef   string
	seriesYes   bool

	updTitle       string
	updDescription string
	updCategory    string
	updPriority    string
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Manage recurring series",
}

var seriesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a recurring series and its initial instances",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			rule := model.RecurrenceRule{
				Frequency: model.Frequency(seriesFreq),
				Interval:  seriesInterval,
				Count:     seriesCount,
			}
			start, err := parseWhen(seriesStart)
			if err != nil {
				return err
			}
			rule.StartDate = start
			if seriesEnd != "" {
				end, endErr := parseWhen(seriesEnd)
				if endErr != nil {
					return endErr
				}
				rule.EndDate = &end
			}

			res, err := st.CreateSeries(cmd.Context(), recur.Template{
				Title:           seriesTitle,
				Description:     seriesDescription,
				Category:        model.Category(defaulted(seriesCategory, string(model.CategoryPersonal))),
				Priority:        model.Priority(defaulted(seriesPriority, string(model.PriorityMedium))),
				ReminderEnabled: seriesRemind,
			}, rule)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "series %s created with %d instances\n",
				shortID(res.Series.ID), len(res.Instances))
			return nil
		})
	},
}

var seriesUpdateCmd = &cobra.Command{
	Use:   "update <series-id>",
	Short: "Apply an edit across a scope of a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			patch := model.TaskPatch{}
			if updTitle != "" {
				patch.Title = &updTitle
			}
			if updDescription != "" {
				patch.Description = &updDescription
			}
			if updCategory != "" {
				c := model.Category(updCategory)
				patch.Category = &c
			}
			if updPriority != "" {
				p := model.Priority(updPriority)
				patch.Priority = &p
			}
			if patch.IsZero() {
				return fmt.Errorf("nothing to update")
			}

			affected, err := st.UpdateSeries(cmd.Context(), args[0], patch, recur.Scope(seriesScope), seriesRef)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d tasks\n", affected)
			return nil
		})
	},
}

var seriesRmCmd = &cobra.Command{
	Use:   "rm <series-id>",
	Short: "Delete a series across a scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			count, err := st.AffectedCount(args[0], recur.Scope(seriesScope), seriesRef)
			if err != nil {
				return err
			}
			if !seriesYes {
				fmt.Fprintf(cmd.OutOrStdout(), "would remove %d tasks; re-run with --yes to confirm\n", count)
				return nil
			}

			removed, err := st.DeleteSeries(cmd.Context(), args[0], recur.Scope(seriesScope), seriesRef)
			if err != nil {
				return err
			}
			propagateRemoteDeletes(cmd.Context(), cfg, st, removed)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d tasks\n", len(removed))
			return nil
		})
	},
}

var seriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List series",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st *store.Store, cfg *config.Config) error {
			for _, sr := range st.Series() {
				state := "active"
				if !sr.Active {
					state = "inactive"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  every %d %s  %s\n",
					shortID(sr.ID), sr.Title, sr.Rule.Interval, sr.Rule.Frequency, state)
			}
			return nil
		})
	},
}

func init() {
	seriesCreateCmd.Flags().StringVar(&seriesTitle, "title", "", "Series title")
	seriesCreateCmd.Flags().StringVar(&seriesDescription, "desc", "", "Series description")
	seriesCreateCmd.Flags().StringVar(&seriesCategory, "category", "", "Category")
	seriesCreateCmd.Flags().StringVar(&seriesPriority, "priority", "", "Priority")
	seriesCreateCmd.Flags().BoolVar(&seriesRemind, "remind", false, "Schedule due-date notifications")
	seriesCreateCmd.Flags().StringVar(&seriesFreq, "freq", "daily", "Frequency: daily|weekly|monthly|yearly")
	seriesCreateCmd.Flags().IntVar(&seriesInterval, "interval", 1, "Recurrence interval")
	seriesCreateCmd.Flags().StringVar(&seriesStart, "start", "", "First occurrence (2006-01-02 or RFC3339)")
	seriesCreateCmd.Flags().StringVar(&seriesEnd, "end", "", "Optional last occurrence date")
	seriesCreateCmd.Flags().IntVar(&seriesCount, "count", 0, "Optional occurrence count limit")
	_ = seriesCreateCmd.MarkFlagRequired("title")
	_ = seriesCreateCmd.MarkFlagRequired("start")

	for _, c := range []*cobra.Command{seriesUpdateCmd, seriesRmCmd} {
		c.Flags().StringVar(&seriesScope, "scope", "all", "Scope: this|future|all")
		c.Flags().StringVar(&seriesRef, "ref", "", "Reference task id for this/future scopes")
	}
	seriesRmCmd.Flags().BoolVar(&seriesYes, "yes", false, "Skip the affected-count confirmation")

	seriesUpdateCmd.Flags().StringVar(&updTitle, "title", "", "New title")
	seriesUpdateCmd.Flags().StringVar(&updDescription, "desc", "", "New description")
	seriesUpdateCmd.Flags().StringVar(&updCategory, "category", "", "New category")
	seriesUpdateCmd.Flags().StringVar(&updPriority, "priority", "", "New priority")

	seriesCmd.AddCommand(seriesCreateCmd)
	seriesCmd.AddCommand(seriesUpdateCmd)
	seriesCmd.AddCommand(seriesRmCmd)
	seriesCmd.AddCommand(seriesListCmd)
}
