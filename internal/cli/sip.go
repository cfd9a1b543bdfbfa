package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
	"basket-trader/internal/trading"
	"basket-trader/pkg/utils"
)

// addSIPCommands adds systematic investment plan commands.
func addSIPCommands(rootCmd *cobra.Command, app *App) {
	sipCmd := &cobra.Command{
		Use:   "sip",
		Short: "Manage systematic investment plans",
		Long: `Automate recurring basket investments.

A SIP invests a fixed amount into a basket on a daily, weekly, or
monthly schedule. Each day runs at most one installment per SIP, even
if the runner fires twice.`,
	}

	sipCmd.AddCommand(newSIPCreateCmd(app))
	sipCmd.AddCommand(newSIPListCmd(app))
	sipCmd.AddCommand(newSIPPauseCmd(app))
	sipCmd.AddCommand(newSIPResumeCmd(app))
	sipCmd.AddCommand(newSIPCancelCmd(app))
	sipCmd.AddCommand(newSIPRunCmd(app))
	sipCmd.AddCommand(newSIPDaemonCmd(app))

	rootCmd.AddCommand(sipCmd)
}

func newSIPCreateCmd(app *App) *cobra.Command {
	var (
		frequency  string
		dayOfWeek  string
		dayOfMonth int
		startDate  string
		endDate    string
	)

	cmd := &cobra.Command{
		Use:   "create BASKET AMOUNT",
		Short: "Create a SIP schedule for a basket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return errs.NewValidationError("amount", args[1], "must be a number")
			}

			params := trading.CreateSIPParams{
				BasketID:   basket.ID,
				Amount:     amount,
				Frequency:  models.SIPFrequency(strings.ToUpper(frequency)),
				DayOfMonth: dayOfMonth,
			}

			if dayOfWeek != "" {
				wd, err := parseWeekday(dayOfWeek)
				if err != nil {
					return err
				}
				params.DayOfWeek = wd
			}
			if startDate != "" {
				t, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return errs.NewValidationError("start", startDate, "must be YYYY-MM-DD")
				}
				params.StartDate = t
			}
			if endDate != "" {
				t, err := time.Parse("2006-01-02", endDate)
				if err != nil {
					return errs.NewValidationError("end", endDate, "must be YYYY-MM-DD")
				}
				params.EndDate = &t
			}

			sip, err := app.SIPs.Create(cmd.Context(), params)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(sip)
			}
			output.Success("Created %s SIP of %s into %q", sip.Frequency,
				utils.FormatIndianCurrency(sip.Amount), basket.Name)
			output.Printf("First installment: %s\n", sip.NextExecutionDate.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&frequency, "frequency", "MONTHLY", "DAILY, WEEKLY, or MONTHLY")
	cmd.Flags().StringVar(&dayOfWeek, "day-of-week", "", "weekly SIPs: weekday name (default Monday)")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "monthly SIPs: day 1-31")
	cmd.Flags().StringVar(&startDate, "start", "", "start date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&endDate, "end", "", "optional end date YYYY-MM-DD")
	return cmd
}

func newSIPListCmd(app *App) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List SIP schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			sips, err := app.SIPs.List(cmd.Context(), models.SIPStatus(strings.ToUpper(status)))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(sips)
			}
			if len(sips) == 0 {
				output.Info("No SIP schedules")
				return nil
			}

			output.Bold("%-36s  %-8s  %-9s  %-10s  %-12s  %s", "ID", "FREQ", "STATUS", "NEXT", "INSTALLMENTS", "INVESTED")
			for _, s := range sips {
				output.Printf("%-36s  %-8s  %-9s  %-10s  %-12d  %s\n",
					s.ID, s.Frequency, s.Status,
					s.NextExecutionDate.Format("2006-01-02"),
					s.CompletedInstallments,
					utils.FormatIndianCurrency(s.TotalInvested))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (ACTIVE, PAUSED, CANCELLED, COMPLETED)")
	return cmd
}

func newSIPPauseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pause SIP_ID",
		Short: "Pause an active SIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			sip, err := app.SIPs.Pause(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sip)
			}
			output.Success("SIP %s paused", sip.ID)
			return nil
		},
	}
}

func newSIPResumeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume SIP_ID",
		Short: "Resume a paused SIP",
		Long: `Resume a paused SIP.

The next installment is computed from today; installments missed while
paused are not backfilled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			sip, err := app.SIPs.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sip)
			}
			output.Success("SIP %s resumed, next installment %s", sip.ID,
				sip.NextExecutionDate.Format("2006-01-02"))
			return nil
		},
	}
}

func newSIPCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel SIP_ID",
		Short: "Cancel a SIP permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			sip, err := app.SIPs.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sip)
			}
			output.Success("SIP %s cancelled", sip.ID)
			return nil
		},
	}
}

func newSIPRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run [SIP_ID]",
		Short: "Run due SIP installments now",
		Long: `Run SIP installments immediately.

With a SIP_ID, runs that schedule; without one, sweeps every active
schedule that is due today. Running twice on the same day is a no-op.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()
			today := utils.TodayIST()

			if len(args) == 1 {
				exec, err := app.SIPs.Run(ctx, args[0], today)
				if errors.Is(err, errs.ErrAlreadyExecutedToday) {
					output.Warning("SIP already executed today")
					return nil
				}
				if errors.Is(err, errs.ErrSIPNotDue) {
					output.Info("SIP is not due today")
					return nil
				}
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(exec)
				}
				output.Success("Installment of %s executed (%d orders)",
					utils.FormatIndianCurrency(exec.Amount), exec.OrderCount)
				return nil
			}

			executed := app.SIPs.ExecuteDue(ctx, today)
			if output.IsJSON() {
				return output.JSON(executed)
			}
			output.Success("Executed %d SIP installment(s)", len(executed))
			return nil
		},
	}
}

func newSIPDaemonCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the SIP scheduler in the foreground",
		Long: `Run the SIP scheduler until interrupted.

The sweep fires per the sip.cron_spec config (default 9:30 IST on
weekdays) and executes every due installment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			runner, err := trading.NewSIPRunner(app.SIPs, app.Logger, app.Config.SIP.CronSpec)
			if err != nil {
				return err
			}

			runner.Start()
			output.Info("SIP scheduler running (cron %q); press Ctrl+C to stop", app.Config.SIP.CronSpec)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			runner.Stop()
			output.Info("SIP scheduler stopped")
			return nil
		},
	}
}

func parseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(s) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
