package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loothound/loothound/internal/utils"
	"github.com/loothound/loothound/pkg/market"

	homedir "github.com/mitchellh/go-homedir"
)

var cfgFile string

const (
	LOGO = `	 _             _   _                           _
	| | ___   ___ | |_| |__   ___  _   _ _ __   __| |
	| |/ _ \ / _ \| __| '_ \ / _ \| | | | '_ \ / _' |
	| | (_) | (_) | |_| | | | (_) | |_| | | | | (_| |
	|_|\___/ \___/ \__|_| |_|\___/ \__,_|_| |_|\__,_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loothound",
	Short: "Track what your stash tabs are worth over time.",
	Long: LOGO + `loothound keeps a revisioned catalog of market prices and values inventory
snapshots against the revision they were taken at, so old snapshots never
change value when prices move.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.loothound.yaml)")

	// Global flags
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default is $HOME/.config/loothound/loothound.sqlite)")
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")

	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
	viper.BindPFlag("market.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
}

func setDefaults() {
	viper.SetDefault("db.path", "")
	viper.SetDefault("market.base_url", market.DefaultBaseURL)
	viper.SetDefault("market.timeout", "30s")
	viper.SetDefault("market.retries", 3)
	viper.SetDefault("market.leagues", market.DefaultLeagues)
	viper.SetDefault("market.currency_categories", market.DefaultCurrencyCategories)
	viper.SetDefault("market.item_categories", market.DefaultItemCategories)
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %s\n", err)
	}

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".loothound")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOOTHOUND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".loothound.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating config file: %s\n", err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
