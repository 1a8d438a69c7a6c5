package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tramita/internal/readstate"
	"tramita/internal/store"
)

func newInboxCommand(ctx *commandContext) *cobra.Command {
	inboxCmd := &cobra.Command{
		Use:   "inbox",
		Short: "Read and manage a user's notification inbox",
	}

	inboxCmd.AddCommand(newInboxListCommand(ctx))
	inboxCmd.AddCommand(newInboxReadCommand(ctx))
	inboxCmd.AddCommand(newInboxUnreadCommand(ctx))
	inboxCmd.AddCommand(newInboxReadAllCommand(ctx))
	inboxCmd.AddCommand(newInboxArchiveCommand(ctx))
	inboxCmd.AddCommand(newInboxRestoreCommand(ctx))
	inboxCmd.AddCommand(newInboxCountCommand(ctx))

	return inboxCmd
}

func parseTypeFlags(values []string) ([]store.NotificationType, error) {
	if len(values) == 0 {
		return nil, nil
	}
	types := make([]store.NotificationType, 0, len(values))
	for _, raw := range values {
		t, ok := store.ParseNotificationType(raw)
		if !ok {
			return nil, fmt.Errorf("unknown notification type %q", raw)
		}
		types = append(types, t)
	}
	return types, nil
}

func newInboxListCommand(ctx *commandContext) *cobra.Command {
	var userFlag string
	var unreadOnly bool
	var includeArchived bool
	var typeFlags []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypeFlags(typeFlags)
			if err != nil {
				return err
			}
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			filter := store.NotificationFilter{
				UnreadOnly:      unreadOnly,
				IncludeArchived: includeArchived,
				Types:           types,
				Limit:           limit,
			}
			inbox, err := service.GetUserNotifications(cmd.Context(), userFlag, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(inbox.Entries) == 0 {
				fmt.Fprintln(out, "Inbox is empty")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(inbox.Entries))
			for _, entry := range inbox.Entries {
				rows = append(rows, []string{
					entry.Notification.ID,
					truncate(entry.Notification.Title, 40),
					string(entry.Notification.Type),
					renderPriority(entry.Notification.Priority, colorize),
					renderReadBadge(entry.Delivery.IsRead, colorize),
					formatTimestamp(entry.Notification.CreatedAt),
				})
			}
			table := renderTable(
				[]string{"ID", "Title", "Type", "Priority", "State", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(out, table)
			fmt.Fprintf(out, "%d unread\n", inbox.UnreadCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Inbox owner (required)")
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only show unread notifications")
	cmd.Flags().BoolVar(&includeArchived, "archived", false, "Include archived notifications")
	cmd.Flags().StringSliceVar(&typeFlags, "type", nil, "Only show these notification types")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to show")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newInboxToggleCommand(ctx *commandContext, use, short, done string,
	apply func(*commandContext, *cobra.Command, string, string) (bool, error)) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   use + " <notification-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := apply(ctx, cmd, args[0], userFlag)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No change for %s\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Inbox owner (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newInboxReadCommand(ctx *commandContext) *cobra.Command {
	return newInboxToggleCommand(ctx, "read", "Mark a notification as read", "Marked read:",
		func(ctx *commandContext, cmd *cobra.Command, notificationID, userID string) (bool, error) {
			service, err := ctx.ensureService()
			if err != nil {
				return false, err
			}
			return service.MarkAsRead(cmd.Context(), notificationID, userID)
		})
}

func newInboxUnreadCommand(ctx *commandContext) *cobra.Command {
	return newInboxToggleCommand(ctx, "unread", "Mark a notification as unread", "Marked unread:",
		func(ctx *commandContext, cmd *cobra.Command, notificationID, userID string) (bool, error) {
			service, err := ctx.ensureService()
			if err != nil {
				return false, err
			}
			return service.MarkAsUnread(cmd.Context(), notificationID, userID)
		})
}

func newInboxArchiveCommand(ctx *commandContext) *cobra.Command {
	return newInboxToggleCommand(ctx, "archive", "Archive a notification", "Archived:",
		func(ctx *commandContext, cmd *cobra.Command, notificationID, userID string) (bool, error) {
			service, err := ctx.ensureService()
			if err != nil {
				return false, err
			}
			return service.Archive(cmd.Context(), notificationID, userID)
		})
}

func newInboxRestoreCommand(ctx *commandContext) *cobra.Command {
	return newInboxToggleCommand(ctx, "restore", "Restore an archived notification", "Restored:",
		func(ctx *commandContext, cmd *cobra.Command, notificationID, userID string) (bool, error) {
			service, err := ctx.ensureService()
			if err != nil {
				return false, err
			}
			return service.Restore(cmd.Context(), notificationID, userID)
		})
}

func newInboxReadAllCommand(ctx *commandContext) *cobra.Command {
	var userFlag string
	var typeFlags []string

	cmd := &cobra.Command{
		Use:   "read-all",
		Short: "Mark all unread notifications as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := parseTypeFlags(typeFlags)
			if err != nil {
				return err
			}
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			count, err := service.MarkAllAsRead(cmd.Context(), userFlag, readstate.Filter{Types: types})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notification(s) read\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Inbox owner (required)")
	cmd.Flags().StringSliceVar(&typeFlags, "type", nil, "Only mark these notification types")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newInboxCountCommand(ctx *commandContext) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show the unread notification count",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			count, err := service.UnreadCount(cmd.Context(), userFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "Inbox owner (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
