package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"basket-trader/internal/broker"
)

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Zerodha session",
	}

	authCmd.AddCommand(newAuthLoginCmd(app))
	authCmd.AddCommand(newAuthStatusCmd(app))
	authCmd.AddCommand(newAuthLogoutCmd(app))

	rootCmd.AddCommand(authCmd)
}

// zerodhaFromApp returns the live broker whose session the auth
// commands manage. It is held on the App even in paper mode, where it
// feeds quotes rather than orders.
func zerodhaFromApp(app *App) (*broker.ZerodhaBroker, error) {
	if app.Zerodha != nil {
		return app.Zerodha, nil
	}
	return nil, fmt.Errorf("no Zerodha credentials configured; add them to credentials.toml")
}

func newAuthLoginCmd(app *App) *cobra.Command {
	var requestToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Zerodha Kite Connect",
		Long: `Log in to Zerodha Kite Connect.

Without --request-token this prints the login URL. Visit it, complete
the login, and re-run with the request token from the redirect URL.
Sessions expire at 6 AM IST the next day.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			zb, err := zerodhaFromApp(app)
			if err != nil {
				return err
			}

			if requestToken != "" {
				if err := zb.CompleteLogin(cmd.Context(), requestToken); err != nil {
					return err
				}
				output.Success("Logged in; session saved")
				return nil
			}

			if err := zb.Login(cmd.Context()); err != nil {
				output.Info("%v", err)
				return nil
			}
			output.Success("Already logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&requestToken, "request-token", "", "request token from the Kite redirect URL")
	return cmd
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			mode := "live"
			if app.Config.IsPaperMode() {
				mode = "paper"
			}

			authenticated := app.Broker != nil && app.Broker.IsAuthenticated()
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"mode":          mode,
					"authenticated": authenticated,
				})
			}

			output.Printf("Mode: %s\n", mode)
			if authenticated {
				output.Success("Authenticated")
			} else {
				output.Warning("Not authenticated; run 'basket-trader auth login'")
			}
			return nil
		},
	}
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the Zerodha session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			zb, err := zerodhaFromApp(app)
			if err != nil {
				return err
			}

			if err := zb.Logout(cmd.Context()); err != nil {
				return err
			}
			output.Success("Logged out")
			return nil
		},
	}
}
