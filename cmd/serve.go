package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loothound/loothound/internal/server"
	"github.com/loothound/loothound/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if refreshInterval > 0 {
			path, err := dbPath()
			if err != nil {
				return err
			}
			lock, err := utils.NewDBLock(path)
			if err != nil {
				return err
			}
			r := &server.Refresher{
				Engine:   e,
				Lock:     lock,
				Interval: refreshInterval,
				Log:      utils.Log.WithField("component", "refresh"),
			}
			go r.Run(ctx)
		}

		s := server.New(e, viper.GetString("server.username"), viper.GetString("server.password"), utils.Log)
		return s.Start(ctx, listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("refresh-interval", 0, "Fetch prices on this interval when they are stale (0 to disable)")
}
