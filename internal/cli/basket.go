package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"basket-trader/internal/engine"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

// addBasketCommands adds basket management commands.
func addBasketCommands(rootCmd *cobra.Command, app *App) {
	basketCmd := &cobra.Command{
		Use:   "basket",
		Short: "Manage stock baskets",
		Long: `Create and edit weighted stock baskets.

Weights are percentages that always sum to 100. Adding a stock assigns
it an equal share and scales the rest down; removing one scales the
rest back up. A basket holds at most 20 stocks, each with at least 0.5%
weight.`,
	}

	basketCmd.AddCommand(newBasketCreateCmd(app))
	basketCmd.AddCommand(newBasketListCmd(app))
	basketCmd.AddCommand(newBasketShowCmd(app))
	basketCmd.AddCommand(newBasketAddCmd(app))
	basketCmd.AddCommand(newBasketRemoveCmd(app))
	basketCmd.AddCommand(newBasketAdjustCmd(app))
	basketCmd.AddCommand(newBasketEqualCmd(app))
	basketCmd.AddCommand(newBasketDeleteCmd(app))

	rootCmd.AddCommand(basketCmd)
}

func newBasketCreateCmd(app *App) *cobra.Command {
	var stocks string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new basket",
		Long: `Create a new basket, optionally seeding it with stocks.

The --stocks flag takes a comma-separated symbol list; each added stock
gets an equal share of the running total, exactly as 'basket add' would
assign it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if existing, err := app.Store.GetBasketByName(ctx, args[0]); err == nil {
				return fmt.Errorf("basket %q already exists (id %s)", existing.Name, existing.ID)
			}

			now := time.Now()
			basket := models.Basket{
				ID:        uuid.NewString(),
				Name:      args[0],
				CreatedAt: now,
				UpdatedAt: now,
			}

			exchange, _ := cmd.Flags().GetString("exchange")
			for _, symbol := range splitSymbols(stocks) {
				var err error
				basket, err = engine.AddConstituent(basket, models.Constituent{
					Symbol:   symbol,
					Exchange: models.Exchange(exchange),
				})
				if err != nil {
					return fmt.Errorf("adding %s: %w", symbol, err)
				}
			}

			if err := app.Store.SaveBasket(ctx, &basket); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(basket)
			}
			output.Success("Created basket %q (%d stocks)", basket.Name, len(basket.Constituents))
			printConstituents(output, basket)
			return nil
		},
	}

	cmd.Flags().StringVar(&stocks, "stocks", "", "comma-separated symbols to seed the basket with")
	cmd.Flags().String("exchange", "NSE", "exchange for seeded symbols (NSE or BSE)")
	return cmd
}

func newBasketListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all baskets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			baskets, err := app.Store.ListBaskets(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(baskets)
			}
			if len(baskets) == 0 {
				output.Info("No baskets yet. Create one with 'basket-trader basket create NAME'")
				return nil
			}

			output.Bold("%-36s  %-20s  %6s", "ID", "NAME", "STOCKS")
			for _, b := range baskets {
				output.Printf("%-36s  %-20s  %6d\n", b.ID, b.Name, len(b.Constituents))
			}
			return nil
		},
	}
}

func newBasketShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show BASKET",
		Short: "Show a basket's constituents and weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(basket)
			}
			output.Bold("%s (%s)", basket.Name, basket.ID)
			printConstituents(output, *basket)
			return nil
		},
	}
}

func newBasketAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add BASKET SYMBOL",
		Short: "Add a stock to a basket",
		Long: `Add a stock to a basket.

The new stock receives an equal share (100/n after the add) and the
existing weights scale down proportionally to make room.`,
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

			exchange, _ := cmd.Flags().GetString("exchange")
			updated, err := engine.AddConstituent(*basket, models.Constituent{
				Symbol:   strings.ToUpper(args[1]),
				Exchange: models.Exchange(exchange),
			})
			if err != nil {
				return err
			}

			if err := app.Store.SaveBasket(cmd.Context(), &updated); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("Added %s to %q", strings.ToUpper(args[1]), updated.Name)
			printConstituents(output, updated)
			return nil
		},
	}

	cmd.Flags().String("exchange", "NSE", "exchange for the symbol (NSE or BSE)")
	return cmd
}

func newBasketRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove BASKET SYMBOL",
		Short: "Remove a stock from a basket",
		Long: `Remove a stock from a basket.

The freed weight is redistributed proportionally across the remaining
stocks. Shares already held are not sold; run 'rebalance' to realign
holdings afterwards.`,
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

			index, err := constituentIndex(*basket, args[1])
			if err != nil {
				return err
			}

			updated, err := engine.RemoveConstituent(*basket, index)
			if err != nil {
				return err
			}

			if err := app.Store.SaveBasket(cmd.Context(), &updated); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("Removed %s from %q", strings.ToUpper(args[1]), updated.Name)
			printConstituents(output, updated)
			return nil
		},
	}
}

func newBasketAdjustCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust BASKET SYMBOL WEIGHT",
		Short: "Set a stock's target weight",
		Long: `Set a stock's target weight in percent.

The other stocks absorb the difference proportionally. Weights are
clamped so every stock keeps at least 0.5%.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			index, err := constituentIndex(*basket, args[1])
			if err != nil {
				return err
			}

			weight, err := decimal.NewFromString(args[2])
			if err != nil {
				return errs.NewValidationError("weight", args[2], "must be a number")
			}

			updated, err := engine.AdjustWeight(*basket, index, weight)
			if err != nil {
				return err
			}

			if err := app.Store.SaveBasket(cmd.Context(), &updated); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("Adjusted %s in %q", strings.ToUpper(args[1]), updated.Name)
			printConstituents(output, updated)
			return nil
		},
	}
}

func newBasketEqualCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "equal BASKET",
		Short: "Reset a basket to equal weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireStore(); err != nil {
				return err
			}
			output := NewOutput(cmd)

			basket, err := resolveBasket(cmd, app, args[0])
			if err != nil {
				return err
			}

			updated, err := engine.ApplyEqualWeights(*basket)
			if err != nil {
				return err
			}

			if err := app.Store.SaveBasket(cmd.Context(), &updated); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(updated)
			}
			output.Success("Equal weights applied to %q", updated.Name)
			printConstituents(output, updated)
			return nil
		},
	}
}

func newBasketDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete BASKET",
		Short: "Delete a basket",
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

			if inv, err := app.Store.GetInvestmentByBasket(ctx, basket.ID); err == nil && len(inv.Holdings) > 0 {
				return fmt.Errorf("basket %q has an active investment; exit it first", basket.Name)
			}

			if err := app.Store.DeleteBasket(ctx, basket.ID); err != nil {
				return err
			}
			output.Success("Deleted basket %q", basket.Name)
			return nil
		},
	}
}

// resolveBasket looks up a basket by ID first, then by name.
func resolveBasket(cmd *cobra.Command, app *App, ref string) (*models.Basket, error) {
	ctx := cmd.Context()
	if basket, err := app.Store.GetBasket(ctx, ref); err == nil {
		return basket, nil
	}
	basket, err := app.Store.GetBasketByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("basket %q not found", ref)
	}
	return basket, nil
}

// constituentIndex finds a symbol's position in the basket.
func constituentIndex(b models.Basket, symbol string) (int, error) {
	symbol = strings.ToUpper(symbol)
	for i, c := range b.Constituents {
		if c.Symbol == symbol {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s is not in basket %q", symbol, b.Name)
}

func splitSymbols(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	return symbols
}

func printConstituents(output *Output, b models.Basket) {
	if len(b.Constituents) == 0 {
		output.Dim("  (empty)")
		return
	}
	for _, c := range b.Constituents {
		output.Printf("  %-12s %-4s %7s%%\n", c.Symbol, c.Exchange, c.WeightPercent.StringFixed(2))
	}
	output.Dim("  total %s%%", b.TotalWeight().StringFixed(2))
}
