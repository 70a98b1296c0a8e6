package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loothound/loothound/internal/utils"
	"github.com/loothound/loothound/pkg/engine"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage the price catalog",
}

var pricesFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Ingest a new price revision from the market API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		if !force {
			if fresh, err := skipFresh(cmd.Context(), e); err != nil || fresh {
				return err
			}
		}

		path, err := dbPath()
		if err != nil {
			return err
		}
		lock, err := utils.NewDBLock(path)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		// The process we waited for may have just written a revision.
		if !force {
			if fresh, err := skipFresh(cmd.Context(), e); err != nil || fresh {
				return err
			}
		}

		rev, err := e.FetchPrices(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rev)
		return nil
	},
}

// skipFresh reports whether prices are recent enough to skip a fetch.
func skipFresh(ctx context.Context, e *engine.Engine) (bool, error) {
	recent, err := e.HasRecentPrices(ctx)
	if err != nil {
		return false, err
	}
	if recent {
		utils.Log.Info("Prices are less than an hour old, skipping (use --force to fetch anyway)")
	}
	return recent, nil
}

var pricesRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print whether the catalog holds prices from the last hour",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		recent, err := e.HasRecentPrices(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), recent)
		return nil
	},
}

var pricesCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Print an item's price at the latest revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		price, err := e.CheckPrice(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatChaos(price))
		return nil
	},
}

var pricesLeaguesCmd = &cobra.Command{
	Use:   "leagues",
	Short: "List the leagues prices are fetched for",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, l := range marketLeagues() {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesFetchCmd, pricesRecentCmd, pricesCheckCmd, pricesLeaguesCmd)
	pricesFetchCmd.Flags().Bool("force", false, "Fetch even if prices are recent")
}
