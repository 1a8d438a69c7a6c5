package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tramita/internal/store"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var periodFlag string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show notification statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			stats, err := service.GetNotificationStatistics(cmd.Context(), periodFlag)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Since %s\n", formatTimestamp(stats.Since))
			fmt.Fprintf(out, "Notifications: %d\n", stats.TotalNotifications)
			readRate := "-"
			if stats.TotalDeliveries > 0 {
				readRate = fmt.Sprintf("%.0f%%", 100*float64(stats.ReadDeliveries)/float64(stats.TotalDeliveries))
			}
			fmt.Fprintf(out, "Deliveries:    %d (%d read, %s)\n", stats.TotalDeliveries, stats.ReadDeliveries, readRate)

			if len(stats.ByType) > 0 {
				rows := make([][]string, 0, len(stats.ByType))
				for _, t := range []store.NotificationType{store.TypeWorkflow, store.TypeAnnouncement, store.TypeReminder, store.TypeAlert} {
					if count, ok := stats.ByType[t]; ok {
						rows = append(rows, []string{string(t), strconv.Itoa(count)})
					}
				}
				table := renderTable([]string{"Type", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, table)
			}
			if len(stats.ByPriority) > 0 {
				rows := make([][]string, 0, len(stats.ByPriority))
				for _, p := range []store.Priority{store.PriorityLow, store.PriorityNormal, store.PriorityHigh, store.PriorityUrgent} {
					if count, ok := stats.ByPriority[p]; ok {
						rows = append(rows, []string{string(p), strconv.Itoa(count)})
					}
				}
				table := renderTable([]string{"Priority", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, table)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&periodFlag, "period", "", "Aggregation window: hour, day, week, or month (defaults to day)")

	return cmd
}
