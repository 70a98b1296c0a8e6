package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loothound/loothound/pkg/storage"
)

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Manage known stash tabs",
}

var stashAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a stash tab",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var s storage.Stash
		s.ID, _ = cmd.Flags().GetString("id")
		s.Name, _ = cmd.Flags().GetString("name")
		s.Type, _ = cmd.Flags().GetString("type")
		s.League, _ = cmd.Flags().GetString("league")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		out, err := e.InsertStash(cmd.Context(), s)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var stashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stash tabs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		stashes, err := e.ListStashes(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tLEAGUE\t")
		for _, s := range stashes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", s.ID, s.Name, s.Type, s.League)
		}
		return w.Flush()
	},
}

var stashGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one stash tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.StashByID(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("stash %s: %w", args[0], err)
		}
		return printJSON(cmd.OutOrStdout(), s)
	},
}

func init() {
	rootCmd.AddCommand(stashCmd)
	stashCmd.AddCommand(stashAddCmd, stashListCmd, stashGetCmd)

	stashAddCmd.Flags().String("id", "", "Stash tab id")
	stashAddCmd.Flags().String("name", "", "Stash tab name")
	stashAddCmd.Flags().String("type", "NormalStash", "Stash tab type")
	stashAddCmd.Flags().String("league", "", "League")
	stashAddCmd.MarkFlagRequired("id")
	stashAddCmd.MarkFlagRequired("name")
}
