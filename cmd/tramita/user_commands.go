package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tramita/internal/store"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the municipal user directory",
	}

	userCmd.AddCommand(newUserAddCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserAssignCommand(ctx))
	userCmd.AddCommand(newUserDeactivateCommand(ctx))
	userCmd.AddCommand(newUserActivateCommand(ctx))

	return userCmd
}

func parseRoleArg(value string) (store.Role, error) {
	role, ok := store.ParseRole(value)
	if !ok {
		return "", fmt.Errorf("unknown role %q (valid: %s)", value, joinRoles())
	}
	return role, nil
}

func parseWorkspaceArg(value string) (store.Workspace, error) {
	ws, ok := store.ParseWorkspace(value)
	if !ok {
		return "", fmt.Errorf("unknown workspace %q (valid: %s)", value, joinWorkspaces())
	}
	return ws, nil
}

func joinRoles() string {
	roles := store.AllRoles()
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func joinWorkspaces() string {
	workspaces := store.AllWorkspaces()
	parts := make([]string, len(workspaces))
	for i, w := range workspaces {
		parts[i] = string(w)
	}
	return strings.Join(parts, ", ")
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var roleFlag string
	var workspaceFlag string
	var nameFlag string

	cmd := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Add a user to the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseRoleArg(roleFlag)
			if err != nil {
				return err
			}
			workspace, err := parseWorkspaceArg(workspaceFlag)
			if err != nil {
				return err
			}
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(nameFlag)
			if name == "" {
				name = args[0]
			}
			user := store.User{
				ID:        args[0],
				Name:      name,
				Role:      role,
				Workspace: workspace,
				Active:    true,
			}
			if err := st.CreateUser(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s, %s)\n", user.ID, displayName(string(role)), displayName(string(workspace)))
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "Role for the new user (required)")
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Workspace for the new user (required)")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Display name (defaults to the user id)")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	var roleFlag string
	var workspaceFlag string
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List directory users",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.UserFilter{ActiveOnly: activeOnly}
			if roleFlag != "" {
				role, err := parseRoleArg(roleFlag)
				if err != nil {
					return err
				}
				filter.Roles = []store.Role{role}
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
			users, err := st.ListUsers(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found")
				return nil
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				active := "yes"
				if !u.Active {
					active = "no"
				}
				rows = append(rows, []string{
					u.ID,
					u.Name,
					displayName(string(u.Role)),
					displayName(string(u.Workspace)),
					active,
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Role", "Workspace", "Active"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "Only show users with this role")
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Only show users in this workspace")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active users")

	return cmd
}

func newUserAssignCommand(ctx *commandContext) *cobra.Command {
	var roleFlag string
	var workspaceFlag string

	cmd := &cobra.Command{
		Use:   "assign <user-id>",
		Short: "Change a user's role or workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			user, err := st.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found", args[0])
			}
			role := user.Role
			if roleFlag != "" {
				if role, err = parseRoleArg(roleFlag); err != nil {
					return err
				}
			}
			workspace := user.Workspace
			if workspaceFlag != "" {
				if workspace, err = parseWorkspaceArg(workspaceFlag); err != nil {
					return err
				}
			}
			if err := st.UpdateUserAssignment(cmd.Context(), user.ID, role, workspace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s, %s\n", user.ID, displayName(string(role)), displayName(string(workspace)))
			return nil
		},
	}

	cmd.Flags().StringVar(&roleFlag, "role", "", "New role")
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "New workspace")

	return cmd
}

func newUserDeactivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Deactivate a user without removing their history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := st.SetUserActive(cmd.Context(), args[0], false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
			return nil
		},
	}
}

func newUserActivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <user-id>",
		Short: "Reactivate a previously deactivated user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := st.SetUserActive(cmd.Context(), args[0], true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s\n", args[0])
			return nil
		},
	}
}
