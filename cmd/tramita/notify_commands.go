package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tramita/internal/fanout"
	"tramita/internal/recipients"
	"tramita/internal/store"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Send notifications",
	}

	notifyCmd.AddCommand(newNotifySendCommand(ctx))
	notifyCmd.AddCommand(newNotifyAnnounceCommand(ctx))
	notifyCmd.AddCommand(newNotifyRemindCommand(ctx))
	notifyCmd.AddCommand(newNotifyTemplateCommand(ctx))

	return notifyCmd
}

func audienceFromFlags(users, roles, workspaces []string, all bool) (recipients.Spec, error) {
	set := 0
	if all {
		set++
	}
	if len(users) > 0 {
		set++
	}
	if len(roles) > 0 {
		set++
	}
	if len(workspaces) > 0 {
		set++
	}
	if set != 1 {
		return recipients.Spec{}, fmt.Errorf("exactly one of --all, --to, --role, or --workspace is required")
	}
	switch {
	case all:
		return recipients.Spec{Type: recipients.SpecAll}, nil
	case len(users) > 0:
		return recipients.Spec{Type: recipients.SpecSpecific, UserIDs: users}, nil
	case len(roles) > 0:
		parsed := make([]store.Role, 0, len(roles))
		for _, raw := range roles {
			role, err := parseRoleArg(raw)
			if err != nil {
				return recipients.Spec{}, err
			}
			parsed = append(parsed, role)
		}
		return recipients.Spec{Type: recipients.SpecRole, Roles: parsed}, nil
	default:
		parsed := make([]store.Workspace, 0, len(workspaces))
		for _, raw := range workspaces {
			ws, err := parseWorkspaceArg(raw)
			if err != nil {
				return recipients.Spec{}, err
			}
			parsed = append(parsed, ws)
		}
		return recipients.Spec{Type: recipients.SpecWorkspace, Workspaces: parsed}, nil
	}
}

func printResult(cmd *cobra.Command, result *fanout.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Notification %s sent to %d recipient(s)\n", result.NotificationID, result.RecipientCount)
	for userID, status := range result.DeliveryStatus {
		parts := make([]string, 0, len(status))
		for method, outcome := range status {
			parts = append(parts, fmt.Sprintf("%s=%s", method, outcome))
		}
		fmt.Fprintf(out, "  %s: %s\n", userID, strings.Join(parts, " "))
	}
}

func newNotifySendCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var contentFlag string
	var typeFlag string
	var priorityFlag string
	var toFlag []string
	var roleFlag []string
	var workspaceFlag []string
	var allFlag bool
	var emailFlag bool

	cmd := &cobra.Command{
		Use:   "send <title>",
		Short: "Send a notification to a chosen audience",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audience, err := audienceFromFlags(toFlag, roleFlag, workspaceFlag, allFlag)
			if err != nil {
				return err
			}
			notifType, ok := store.ParseNotificationType(typeFlag)
			if !ok {
				return fmt.Errorf("unknown notification type %q", typeFlag)
			}
			var priority store.Priority
			if priorityFlag != "" {
				if priority, ok = store.ParsePriority(priorityFlag); !ok {
					return fmt.Errorf("unknown priority %q", priorityFlag)
				}
			}
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			payload := fanout.Payload{
				Title:        args[0],
				Content:      contentFlag,
				Type:         notifType,
				Priority:     priority,
				CreatedBy:    actorFlag,
				Audience:     audience,
				RequestEmail: emailFlag,
			}
			result, err := service.CreateNotification(cmd.Context(), payload)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id sending the notification (required)")
	cmd.Flags().StringVar(&contentFlag, "content", "", "Notification body")
	cmd.Flags().StringVar(&typeFlag, "type", string(store.TypeAlert), "Notification type: workflow, announcement, reminder, or alert")
	cmd.Flags().StringVar(&priorityFlag, "priority", "", "Priority: low, normal, high, or urgent")
	cmd.Flags().StringSliceVar(&toFlag, "to", nil, "Recipient user ids")
	cmd.Flags().StringSliceVar(&roleFlag, "role", nil, "Recipient roles")
	cmd.Flags().StringSliceVar(&workspaceFlag, "workspace", nil, "Recipient workspaces")
	cmd.Flags().BoolVar(&allFlag, "all", false, "Send to every active user")
	cmd.Flags().BoolVar(&emailFlag, "email", false, "Also deliver by email")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func newNotifyAnnounceCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var contentFlag string
	var priorityFlag string

	cmd := &cobra.Command{
		Use:   "announce <title>",
		Short: "Send a system announcement to all active users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority := store.PriorityNormal
			if priorityFlag != "" {
				parsed, ok := store.ParsePriority(priorityFlag)
				if !ok {
					return fmt.Errorf("unknown priority %q", priorityFlag)
				}
				priority = parsed
			}
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			result, err := service.CreateSystemAnnouncement(cmd.Context(), actorFlag, args[0], contentFlag, priority)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id sending the announcement (required)")
	cmd.Flags().StringVar(&contentFlag, "content", "", "Announcement body")
	cmd.Flags().StringVar(&priorityFlag, "priority", "", "Priority (defaults to normal)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func newNotifyRemindCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var contentFlag string
	var toFlag []string
	var atFlag string

	cmd := &cobra.Command{
		Use:   "remind <title>",
		Short: "Send a reminder to specific users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var remindAt *time.Time
			if atFlag != "" {
				parsed, err := time.Parse(time.RFC3339, atFlag)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				remindAt = &parsed
			}
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			result, err := service.CreateReminder(cmd.Context(), actorFlag, args[0], contentFlag, toFlag, remindAt)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id sending the reminder (required)")
	cmd.Flags().StringVar(&contentFlag, "content", "", "Reminder body")
	cmd.Flags().StringSliceVar(&toFlag, "to", nil, "Recipient user ids (required)")
	cmd.Flags().StringVar(&atFlag, "at", "", "RFC 3339 time to hold delivery until")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newNotifyTemplateCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var varFlags []string
	var toFlag []string
	var roleFlag []string
	var workspaceFlag []string
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "template <name>",
		Short: "Send a notification from a named template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audience, err := audienceFromFlags(toFlag, roleFlag, workspaceFlag, allFlag)
			if err != nil {
				return err
			}
			vars := make(map[string]string, len(varFlags))
			for _, raw := range varFlags {
				key, value, ok := strings.Cut(raw, "=")
				if !ok {
					return fmt.Errorf("variable %q: want key=value", raw)
				}
				vars[key] = value
			}
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			result, err := service.CreateFromTemplate(cmd.Context(), actorFlag, args[0], vars, audience)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id sending the notification (required)")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Template variable as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&toFlag, "to", nil, "Recipient user ids")
	cmd.Flags().StringSliceVar(&roleFlag, "role", nil, "Recipient roles")
	cmd.Flags().StringSliceVar(&workspaceFlag, "workspace", nil, "Recipient workspaces")
	cmd.Flags().BoolVar(&allFlag, "all", false, "Send to every active user")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}
