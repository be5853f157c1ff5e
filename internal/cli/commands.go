package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jobboard/backend/internal/database"
	"github.com/jobboard/backend/internal/models"
	"github.com/jobboard/backend/internal/services"
	"github.com/jobboard/backend/internal/store"
	"github.com/spf13/cobra"
)

const passwordEnv = "JOBBOARD_SUPERUSER_PASSWORD"

func newMigrateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.Migrate(app.db); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func newCreateSuperuserCommand(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a verified superuser account",
		Long: `Create a superuser. Superusers start with a verified email and never
receive a verification link. The password may also be passed through
` + passwordEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordEnv)
			}
			if password == "" {
				return fmt.Errorf("a password is required (--password or %s)", passwordEnv)
			}

			user, err := app.Auth.CreateUser(cmd.Context(), services.NewUser{
				Email:     email,
				Password:  password,
				Superuser: true,
			})
			if err != nil {
				return err
			}

			if app.flagJSON {
				return app.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created (id %s).\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the new superuser")
	cmd.Flags().StringVar(&password, "password", "", "Password of the new superuser")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newCreateUserCommand(app *App) *cobra.Command {
	var (
		email    string
		staff    bool
		testUser bool
	)

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a regular account",
		Long: `Create an account as if it had registered itself. Regular accounts
receive a verification link; test accounts (--test) skip email verification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.Auth.CreateUser(cmd.Context(), services.NewUser{
				Email:    email,
				Staff:    staff,
				TestUser: testUser,
			})
			if err != nil {
				return err
			}

			if app.flagJSON {
				return app.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s created (id %s).\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the new account")
	cmd.Flags().BoolVar(&staff, "staff", false, "Grant staff access")
	cmd.Flags().BoolVar(&testUser, "test", false, "Mark as a test account that skips email verification")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResendVerificationCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resend-verification <email>",
		Short: "Email a fresh verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Auth.BeginEmailVerification(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Verification link sent to %s.\n", args[0])
			return nil
		},
	}
}

type userStatus struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	EmailState  string `json:"emailState"`
	DeviceState string `json:"deviceState"`
	TwoFactor   bool   `json:"is2FAEnabled"`
	Superuser   bool   `json:"isSuperuser"`
	LastLogin   string `json:"lastLogin,omitempty"`
}

func newUserCommand(app *App) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect accounts",
	}

	userCmd.AddCommand(&cobra.Command{
		Use:   "show <email>",
		Short: "Show verification and 2FA state of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st := app.Auth.Store

			user, err := st.UserByEmail(ctx, args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return services.ErrNotFound
				}
				return err
			}

			code, err := st.CodeForUser(ctx, user.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			device, err := st.DeviceForUser(ctx, user.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}

			status := statusOf(user, code, device, app.Auth)
			if app.flagJSON {
				return app.printJSON(cmd.OutOrStdout(), status)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID:\t%s\n", status.ID)
			fmt.Fprintf(w, "Email:\t%s\n", status.Email)
			fmt.Fprintf(w, "Email state:\t%s\n", status.EmailState)
			fmt.Fprintf(w, "Device state:\t%s\n", status.DeviceState)
			fmt.Fprintf(w, "2FA enabled:\t%v\n", status.TwoFactor)
			fmt.Fprintf(w, "Superuser:\t%v\n", status.Superuser)
			if status.LastLogin != "" {
				fmt.Fprintf(w, "Last login:\t%s\n", status.LastLogin)
			}
			return w.Flush()
		},
	})

	return userCmd
}

func statusOf(user *models.User, code *models.EmailVerificationCode, device *models.TOTPDevice, auth *services.AuthService) userStatus {
	status := userStatus{
		ID:          user.ID.String(),
		Email:       user.Email,
		EmailState:  services.EmailStateOf(user, code, auth.Now()).String(),
		DeviceState: services.DeviceStateOf(device).String(),
		TwoFactor:   user.Is2FAEnabled,
		Superuser:   user.IsSuperuser,
	}
	if user.LastLoginAt != nil {
		status.LastLogin = user.LastLoginAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return status
}
