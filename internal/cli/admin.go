package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetchart-web/internal/apiclient"
)

func (e *env) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Platform administration (admin role only)",
	}

	var userParams apiclient.ListParams
	usersCmd := guarded("admin", &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := e.ws.Admin.FetchUsers(cmd.Context(), userParams)
			if err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			return e.printJSON(page)
		},
	})
	listFlags(usersCmd, &userParams)
	usersCmd.Flags().StringVar(&userParams.Role, "role", "", "filter by role")

	userCmd := guarded("admin", &cobra.Command{
		Use:   "user USER_ID",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := e.ws.Admin.FetchUser(cmd.Context(), args[0])
			if err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			return e.printJSON(user)
		},
	})

	roleCmd := guarded("admin", &cobra.Command{
		Use:   "role USER_ID user|admin",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := apiclient.Role(args[1])
			if role != apiclient.RoleUser && role != apiclient.RoleAdmin {
				return fmt.Errorf("role must be user or admin, got %q", args[1])
			}
			user, err := e.ws.Admin.UpdateUserRole(cmd.Context(), args[0], role)
			if err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			e.success("User role updated successfully")
			return e.printJSON(user)
		},
	})

	toggleCmd := guarded("admin", &cobra.Command{
		Use:   "toggle USER_ID",
		Short: "Activate or deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := e.ws.Admin.ToggleUserStatus(cmd.Context(), args[0])
			if err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			e.success("User status updated successfully")
			return e.printJSON(user)
		},
	})

	deleteCmd := guarded("admin", &cobra.Command{
		Use:   "delete USER_ID",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.ws.Admin.DeleteUser(cmd.Context(), args[0]); err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			e.success("User deleted successfully")
			return nil
		},
	})

	statsCmd := guarded("admin", &cobra.Command{
		Use:   "stats",
		Short: "Show platform counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := e.ws.Admin.FetchStats(cmd.Context())
			if err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			return e.printJSON(stats)
		},
	})

	var fileParams apiclient.ListParams
	filesCmd := guarded("admin", &cobra.Command{
		Use:   "files",
		Short: "List every uploaded file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := e.ws.Admin.FetchAllFiles(cmd.Context(), fileParams)
			if err != nil {
				return e.failed(err, e.ws.Admin.View().Error)
			}
			return e.printJSON(page)
		},
	})
	listFlags(filesCmd, &fileParams)
	filesCmd.Flags().StringVar(&fileParams.User, "user", "", "filter by owner id")

	cmd.AddCommand(usersCmd, userCmd, roleCmd, toggleCmd, deleteCmd, statsCmd, filesCmd)
	return cmd
}
