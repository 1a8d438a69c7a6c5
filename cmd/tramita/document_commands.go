package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tramita/internal/store"
	"tramita/internal/workflow"
)

func newDocumentTransitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions [status]",
		Short: "Show the allowed status transitions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := store.AllStatuses()
			if len(args) == 1 {
				status, ok := store.ParseStatus(args[0])
				if !ok {
					return fmt.Errorf("unknown status %q", args[0])
				}
				statuses = []store.DocumentStatus{status}
			}
			rows := make([][]string, 0, len(statuses))
			for _, from := range statuses {
				targets := workflow.AllowedTransitions(from)
				cell := "-"
				if len(targets) > 0 {
					parts := make([]string, len(targets))
					for i, t := range targets {
						parts[i] = string(t)
					}
					cell = strings.Join(parts, ", ")
				}
				rows = append(rows, []string{string(from), cell})
			}
			rendered := renderTable([]string{"From", "To"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
}

func newDocumentCommand(ctx *commandContext) *cobra.Command {
	docCmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Create and move documents through the workflow",
	}

	docCmd.AddCommand(newDocumentCreateCommand(ctx))
	docCmd.AddCommand(newDocumentShowCommand(ctx))
	docCmd.AddCommand(newDocumentListCommand(ctx))
	docCmd.AddCommand(newDocumentTransitionCommand(ctx))
	docCmd.AddCommand(newDocumentEditCommand(ctx))
	docCmd.AddCommand(newDocumentTransitionsCommand())

	return docCmd
}

func newDocumentCreateCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var workspaceFlag string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a draft document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			doc, err := service.CreateDocument(cmd.Context(), args[0], workspaceFlag, actorFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s, v%s)\n", doc.ID, doc.Status, doc.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id performing the action (required)")
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Workspace (defaults to the actor's)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func newDocumentShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <document-id>",
		Short: "Show a document's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			doc, err := service.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "ID:         %s\n", doc.ID)
			fmt.Fprintf(out, "Title:      %s\n", doc.Title)
			fmt.Fprintf(out, "Status:     %s\n", renderStatus(doc.Status, colorize))
			fmt.Fprintf(out, "Workspace:  %s\n", displayName(string(doc.Workspace)))
			fmt.Fprintf(out, "Version:    %s\n", doc.Version)
			fmt.Fprintf(out, "Created by: %s\n", doc.CreatedBy)
			if doc.AssignedTo != "" {
				fmt.Fprintf(out, "Assigned:   %s\n", doc.AssignedTo)
			}
			fmt.Fprintf(out, "Updated:    %s\n", formatTimestamp(doc.UpdatedAt))
			return nil
		},
	}
}

func newDocumentListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var workspaceFlag string
	var createdBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.DocumentFilter{CreatedBy: strings.TrimSpace(createdBy)}
			if statusFlag != "" {
				status, ok := store.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				filter.Statuses = []store.DocumentStatus{status}
			}
			if workspaceFlag != "" {
				ws, err := parseWorkspaceArg(workspaceFlag)
				if err != nil {
					return err
				}
				filter.Workspaces = []store.Workspace{ws}
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			docs, err := st.ListDocuments(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents found")
				return nil
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(docs))
			for _, d := range docs {
				rows = append(rows, []string{
					d.ID,
					truncate(d.Title, 40),
					renderStatus(d.Status, colorize),
					displayName(string(d.Workspace)),
					d.Version.String(),
					formatTimestamp(d.UpdatedAt),
				})
			}
			table := renderTable(
				[]string{"ID", "Title", "Status", "Workspace", "Version", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show documents in this status")
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Only show documents in this workspace")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "Only show documents created by this user")

	return cmd
}

func newDocumentTransitionCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var versionFlag string
	var reasonFlag string

	cmd := &cobra.Command{
		Use:   "transition <document-id> <target-status>",
		Short: "Move a document to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.ensureService()
			if err != nil {
				return err
			}
			doc, err := service.TransitionDocumentStatus(cmd.Context(), args[0], args[1], actorFlag, versionFlag, reasonFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s (v%s)\n", doc.ID, doc.Status, doc.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id performing the action (required)")
	cmd.Flags().StringVar(&versionFlag, "version", "", "Expected document version, e.g. 1.0.0 (required)")
	cmd.Flags().StringVar(&reasonFlag, "reason", "", "Reason, reported to the creator on rejection")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newDocumentEditCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string
	var versionFlag string
	var bumpFlag string

	cmd := &cobra.Command{
		Use:   "edit <document-id> <new-title>",
		Short: "Record a content edit, bumping the document version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			expect, err := store.ParseVersion(versionFlag)
			if err != nil {
				return err
			}
			level := store.BumpLevel(strings.ToLower(strings.TrimSpace(bumpFlag)))
			switch level {
			case store.BumpPatch, store.BumpMinor, store.BumpMajor:
			default:
				return fmt.Errorf("unknown bump level %q (valid: patch, minor, major)", bumpFlag)
			}
			wf, err := ctx.ensureWorkflow()
			if err != nil {
				return err
			}
			doc, err := wf.EditContent(cmd.Context(), args[0], actorFlag, args[1], level, expect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated to v%s\n", doc.ID, doc.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorFlag, "as", "", "User id performing the action (required)")
	cmd.Flags().StringVar(&versionFlag, "version", "", "Expected document version (required)")
	cmd.Flags().StringVar(&bumpFlag, "bump", string(store.BumpPatch), "Version component to bump: patch, minor, or major")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}
