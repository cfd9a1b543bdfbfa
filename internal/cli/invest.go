package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"basket-trader/internal/broker"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
	"basket-trader/pkg/utils"
)

// addInvestCommands adds investment workflow commands.
func addInvestCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newMinInvestmentCmd(app))
	rootCmd.AddCommand(newInvestCmd(app))
	rootCmd.AddCommand(newRebalanceCmd(app))
	rootCmd.AddCommand(newExitCmd(app))
	rootCmd.AddCommand(newHoldingsCmd(app))
}

func newMinInvestmentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "min-investment BASKET",
		Short: "Show the minimum amount needed to invest in a basket",
		Long: `Show the minimum amount needed to buy at least one share of every
stock in the basket at current prices, rounded up to the nearest 100.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			min, err := app.Investments.MinimumInvestment(cmd.Context(), basket.ID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{
					"basket_id":          basket.ID,
					"minimum_investment": min.String(),
				})
			}
			output.Printf("Minimum investment for %q: %s\n", basket.Name, utils.FormatIndianCurrency(min))
			return nil
		},
	}
}

func newInvestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "invest BASKET AMOUNT",
		Short: "Invest a lump sum across a basket",
		Long: `Invest a cash amount across a basket per its target weights.

Each stock gets its weight's share of the cash, bought as whole shares
at the current price. Fractional remainders stay uninvested and are
reported as leftover cash.`,
		Args: cobra.ExactArgs(2),
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

			// Paper orders fill instantly; live orders queue until open.
			if !app.Config.IsPaperMode() && !utils.IsMarketOpen() {
				output.Warning("Market is closed; orders queue until %s",
					utils.GetNextMarketOpen().Format("Mon 02 Jan 15:04 MST"))
			}

			result, err := app.Investments.Invest(cmd.Context(), basket.ID, amount)
			if errors.Is(err, errs.ErrBelowMinInvestment) {
				output.Warning("%v", err)
				return nil
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Success("Invested %s in %q", utils.FormatIndianCurrency(amount), basket.Name)
			printSubmitResults(output, result.Orders)
			output.Printf("Spent:    %s\n", utils.FormatIndianCurrency(result.Plan.SpentAmount))
			output.Printf("Leftover: %s\n", utils.FormatIndianCurrency(result.Plan.LeftoverCash))
			return nil
		},
	}
}

func newRebalanceCmd(app *App) *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "rebalance BASKET",
		Short: "Realign an investment with its basket's target weights",
		Long: `Realign an investment's holdings with the basket's target weights.

Only stocks whose actual weight deviates from the target by more than
the threshold are traded. Stocks removed from the basket are left
untouched; sell them explicitly with 'exit'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			inv, err := app.Store.GetInvestmentByBasket(ctx, basket.ID)
			if err != nil {
				return fmt.Errorf("no investment found for basket %q", basket.Name)
			}

			if !cmd.Flags().Changed("threshold") {
				threshold = app.Config.Trading.RebalanceThreshold
			}

			result, err := app.Investments.Rebalance(ctx, inv.ID, decimal.NewFromFloat(threshold))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			if len(result.Plan.Orders) == 0 {
				output.Info("All weights within %.1f%% of target; nothing to do", threshold)
				return nil
			}

			output.Success("Rebalanced %q", basket.Name)
			printSubmitResults(output, result.Orders)
			output.Printf("Bought: %s  Sold: %s\n",
				utils.FormatIndianCurrency(result.Plan.TotalBuyAmount),
				utils.FormatIndianCurrency(result.Plan.TotalSellAmount))
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 5.0, "deviation band in percent")
	return cmd
}

func newExitCmd(app *App) *cobra.Command {
	var percentage float64

	cmd := &cobra.Command{
		Use:   "exit BASKET",
		Short: "Sell some or all of an investment",
		Long: `Sell a percentage of every holding in an investment.

Quantities round down to whole shares, so a partial exit of a single
share does nothing. A full exit removes the investment record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			inv, err := app.Store.GetInvestmentByBasket(ctx, basket.ID)
			if err != nil {
				return fmt.Errorf("no investment found for basket %q", basket.Name)
			}

			result, err := app.Investments.Exit(ctx, inv.ID, decimal.NewFromFloat(percentage))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			if len(result.Orders) == 0 {
				output.Info("Nothing to sell at %.1f%%", percentage)
				return nil
			}

			output.Success("Sold %.1f%% of %q for %s", percentage, basket.Name,
				utils.FormatIndianCurrency(result.SoldValue))
			printSubmitResults(output, result.Orders)
			if result.FullExit {
				output.Dim("Investment closed")
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&percentage, "percentage", 100.0, "percentage of each holding to sell")
	return cmd
}

func newHoldingsCmd(app *App) *cobra.Command {
	holdingsCmd := &cobra.Command{
		Use:   "holdings",
		Short: "View and sync investment holdings",
	}

	holdingsCmd.AddCommand(&cobra.Command{
		Use:   "show BASKET",
		Short: "Show the recorded holdings for a basket's investment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			inv, err := app.Store.GetInvestmentByBasket(ctx, basket.ID)
			if err != nil {
				return fmt.Errorf("no investment found for basket %q", basket.Name)
			}

			if output.IsJSON() {
				return output.JSON(inv)
			}

			output.Bold("%s — invested %s", basket.Name, utils.FormatIndianCurrency(inv.InvestedAmount))
			printHoldings(output, inv.Holdings)
			if inv.LastRebalancedAt != nil {
				output.Dim("last rebalanced %s", inv.LastRebalancedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})

	holdingsCmd.AddCommand(&cobra.Command{
		Use:   "sync BASKET",
		Short: "Replace recorded holdings with the broker's view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			inv, err := app.Store.GetInvestmentByBasket(ctx, basket.ID)
			if err != nil {
				return fmt.Errorf("no investment found for basket %q", basket.Name)
			}

			synced, err := app.Investments.SyncHoldings(ctx, inv.ID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(synced)
			}
			output.Success("Synced holdings for %q", basket.Name)
			printHoldings(output, synced.Holdings)
			return nil
		},
	})

	return holdingsCmd
}

func printHoldings(output *Output, holdings []models.Holding) {
	if len(holdings) == 0 {
		output.Dim("  (no holdings)")
		return
	}
	for _, h := range holdings {
		output.Printf("  %-12s %-4s %6s @ %s\n",
			h.Symbol, h.Exchange, utils.FormatQuantity(h.Quantity),
			utils.FormatIndianCurrency(h.AveragePrice))
	}
}

func printSubmitResults(output *Output, results []broker.SubmitResult) {
	for _, r := range results {
		line := fmt.Sprintf("  %-4s %-12s x%-5d", r.Order.Side, r.Order.Symbol, r.Order.Quantity)
		if r.Accepted {
			output.Printf("%s %s\n", line, output.DimText(r.BrokerOrderID))
		} else {
			output.Printf("%s %s\n", line, output.Red(fmt.Sprintf("rejected: %v", r.Err)))
		}
	}
}
