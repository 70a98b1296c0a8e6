package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/loothound/loothound/internal/utils"
	"github.com/loothound/loothound/pkg/engine"
	"github.com/loothound/loothound/pkg/market"
)

// dbPath resolves db.path (flag, env or config) to an absolute path.
func dbPath() (string, error) {
	return utils.GetAbsDBPath(viper.GetString("db.path"))
}

func marketOptions() market.Options {
	timeout, err := time.ParseDuration(viper.GetString("market.timeout"))
	if err != nil {
		utils.Log.Warnf("Invalid market.timeout %q, using default", viper.GetString("market.timeout"))
		timeout = 0
	}
	return market.Options{
		BaseURL:  viper.GetString("market.base_url"),
		Timeout:  timeout,
		RetryMax: viper.GetInt("market.retries"),
		Proxy:    viper.GetString("market.proxy"),
		Log:      utils.Log,
	}
}

func marketTargets() []market.Target {
	return market.BuildTargets(
		viper.GetStringSlice("market.leagues"),
		viper.GetStringSlice("market.currency_categories"),
		viper.GetStringSlice("market.item_categories"),
	)
}

func engineConfig() engine.Config {
	return engine.Config{
		Targets: marketTargets(),
		Leagues: viper.GetStringSlice("market.leagues"),
		Log:     utils.Log,
	}
}

func marketLeagues() []string {
	return engine.New(engineConfig()).PricingLeagues()
}

// openEngine builds an engine from the configuration and loads the
// database. The caller must Close it.
func openEngine() (*engine.Engine, error) {
	client, err := market.NewClient(marketOptions())
	if err != nil {
		return nil, err
	}

	path, err := dbPath()
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDBDir(path); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}

	cfg := engineConfig()
	cfg.Source = client
	e := engine.New(cfg)
	if err := e.Open(path); err != nil {
		return nil, err
	}
	utils.Log.Debugf("Using database %s", path)
	return e, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatChaos renders a price with at most two decimals.
func formatChaos(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
