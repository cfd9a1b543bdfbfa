package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"basket-trader/internal/broker"
	"basket-trader/internal/config"
	"basket-trader/internal/logging"
	"basket-trader/internal/store"
	"basket-trader/internal/trading"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-01-01"
)

// App holds the application dependencies.
type App struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Broker      broker.Broker
	Zerodha     *broker.ZerodhaBroker // session management target, nil without credentials
	Store       store.DataStore
	Investments *trading.InvestmentService
	SIPs        *trading.SIPService
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize broker: live Zerodha when credentials exist and paper
	// mode is off, otherwise a paper broker backed by live quotes when
	// possible.
	var zerodha *broker.ZerodhaBroker
	if cfg.Credentials.Zerodha.APIKey != "" {
		zerodha = broker.NewZerodhaBroker(broker.ZerodhaConfig{
			APIKey:    cfg.Credentials.Zerodha.APIKey,
			APISecret: cfg.Credentials.Zerodha.APISecret,
			UserID:    cfg.Credentials.Zerodha.UserID,
		})
		app.Zerodha = zerodha
		logger.Debug().Msg("Zerodha broker initialized")
	}

	if cfg.IsPaperMode() || zerodha == nil {
		var dataBroker broker.Broker
		if zerodha != nil && zerodha.IsAuthenticated() {
			dataBroker = zerodha
		}
		app.Broker = broker.NewPaperBroker(broker.PaperBrokerConfig{
			DataBroker:     dataBroker,
			InitialBalance: decimal.NewFromFloat(cfg.Trading.PaperBalance),
		})
		logger.Debug().Msg("Paper broker initialized")
	} else {
		app.Broker = zerodha
	}

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Msg("SQLite store initialized")
	}

	if app.Store != nil {
		app.Investments = trading.NewInvestmentService(app.Broker, app.Store, logger)
		app.SIPs = trading.NewSIPService(app.Store, app.Investments, logger)
	}

	rootCmd := &cobra.Command{
		Use:   "basket-trader",
		Short: "Basket Trader - weighted stock basket investing CLI",
		Long: `Basket Trader manages weighted stock baskets on the Indian market.

Build a basket of up to 20 stocks with percentage weights, invest a lump
sum across it, keep it aligned with periodic rebalancing, and automate
installments with SIP schedules. Orders route through Zerodha Kite
Connect, or fill instantly in paper trading mode.

Use 'basket-trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/basket-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	addAuthCommands(rootCmd, app)
	addBasketCommands(rootCmd, app)
	addInvestCommands(rootCmd, app)
	addSIPCommands(rootCmd, app)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
				return
			}
			output.Printf("basket-trader %s (built %s)\n", Version, BuildDate)
		},
	}
}

// requireStore returns an error when the data store failed to open.
func (a *App) requireStore() error {
	if a.Store == nil {
		return fmt.Errorf("data store unavailable: check database path and permissions")
	}
	return nil
}
