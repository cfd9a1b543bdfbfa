package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basket-trader/internal/broker"
)

func TestZerodhaFromApp(t *testing.T) {
	t.Run("reaches the live broker in paper mode", func(t *testing.T) {
		zb := broker.NewZerodhaBroker(broker.ZerodhaConfig{
			APIKey:    "key",
			TokenPath: filepath.Join(t.TempDir(), "session.json"),
		})
		app := &App{
			Broker:  broker.NewPaperBroker(broker.PaperBrokerConfig{DataBroker: zb}),
			Zerodha: zb,
		}

		got, err := zerodhaFromApp(app)
		require.NoError(t, err)
		assert.Same(t, zb, got)
	})

	t.Run("fails without credentials", func(t *testing.T) {
		app := &App{Broker: broker.NewPaperBroker(broker.PaperBrokerConfig{})}
		_, err := zerodhaFromApp(app)
		assert.Error(t, err)
	})
}
