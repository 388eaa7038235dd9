package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sheetchart-web/internal/apiclient"
)

// passwordEnv lets scripts avoid passing secrets on the command line.
const passwordEnv = "SHEETCHART_PASSWORD"

func password(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(passwordEnv)
}

func (e *env) loginCmd() *cobra.Command {
	var creds apiclient.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds.Password = password(creds.Password)
			if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
				return errors.New("email and password are required")
			}
			user, err := e.ws.Auth.Login(cmd.Context(), creds)
			if err != nil {
				return e.failed(err, e.ws.Auth.View().Error)
			}
			e.success("Login successful!")
			return e.printJSON(user)
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (or $"+passwordEnv+")")
	return cmd
}

func (e *env) registerCmd() *cobra.Command {
	var reg apiclient.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.Password = password(reg.Password)
			if strings.TrimSpace(reg.Username) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
				return errors.New("username, email and password are required")
			}
			user, err := e.ws.Auth.Register(cmd.Context(), reg)
			if err != nil {
				return e.failed(err, e.ws.Auth.View().Error)
			}
			e.success("Registration successful!")
			return e.printJSON(user)
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "account password (or $"+passwordEnv+")")
	return cmd
}

func (e *env) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.ws.Logout(cmd.Context()); err != nil {
				return err
			}
			e.success("Logged out successfully")
			return nil
		},
	}
}

func (e *env) whoamiCmd() *cobra.Command {
	return guarded("auth", &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.printJSON(e.ws.Session().User)
		},
	})
}

func (e *env) profileCmd() *cobra.Command {
	cmd := guarded("auth", &cobra.Command{
		Use:   "profile",
		Short: "Show or change the account profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := e.ws.Auth.GetProfile(cmd.Context())
			if err != nil {
				return e.failed(err, e.ws.Auth.View().Error)
			}
			return e.printJSON(user)
		},
	})

	var update apiclient.ProfileUpdate
	updateCmd := guarded("auth", &cobra.Command{
		Use:   "update",
		Short: "Change username or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(update.Username) == "" && strings.TrimSpace(update.Email) == "" {
				return errors.New("nothing to update")
			}
			user, err := e.ws.Auth.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return e.failed(err, e.ws.Auth.View().Error)
			}
			e.success("Profile updated successfully")
			return e.printJSON(user)
		},
	})
	updateCmd.Flags().StringVar(&update.Username, "username", "", "new username")
	updateCmd.Flags().StringVar(&update.Email, "email", "", "new email")

	var change apiclient.PasswordChange
	passwordCmd := guarded("auth", &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if change.CurrentPassword == "" || change.NewPassword == "" {
				return errors.New("current and new password are required")
			}
			if err := e.ws.Auth.ChangePassword(cmd.Context(), change); err != nil {
				return e.failed(err, e.ws.Auth.View().Error)
			}
			e.success("Password changed successfully")
			return nil
		},
	})
	passwordCmd.Flags().StringVar(&change.CurrentPassword, "current", "", "current password")
	passwordCmd.Flags().StringVar(&change.NewPassword, "new", "", "new password")

	cmd.AddCommand(updateCmd, passwordCmd)
	return cmd
}
