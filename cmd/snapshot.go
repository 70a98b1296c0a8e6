package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loothound/loothound/pkg/engine"
	"github.com/loothound/loothound/pkg/inventory"
	"github.com/loothound/loothound/pkg/storage"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create and value inventory snapshots",
}

var snapshotNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a snapshot bound to the latest price revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, _ := cmd.Flags().GetInt64("profile")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := e.NewSnapshot(cmd.Context(), profileID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

var snapshotAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Value items from a JSON file and attach them to a snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshotID, _ := cmd.Flags().GetInt64("snapshot")
		stashID, _ := cmd.Flags().GetString("stash")
		itemsFile, _ := cmd.Flags().GetString("items")

		items, err := readItems(itemsFile)
		if err != nil {
			return err
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := e.GetSnapshot(cmd.Context(), snapshotID)
		if err != nil {
			return fmt.Errorf("snapshot %d: %w", snapshotID, err)
		}
		total, err := e.AddItemsToSnapshot(cmd.Context(), snap, items, stashID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatChaos(total))
		return nil
	},
}

var snapshotSetValueCmd = &cobra.Command{
	Use:   "set-value",
	Short: "Overwrite a snapshot's total",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshotID, _ := cmd.Flags().GetInt64("snapshot")
		value, _ := cmd.Flags().GetInt64("value")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := e.GetSnapshot(cmd.Context(), snapshotID)
		if err != nil {
			return fmt.Errorf("snapshot %d: %w", snapshotID, err)
		}
		return e.SnapshotSetValue(cmd.Context(), snap, value)
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a profile's snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, _ := cmd.Flags().GetInt64("profile")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		snaps, err := e.ListSnapshots(cmd.Context(), profileID)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No snapshots for this profile.")
			return nil
		}
		writeSnapshots(cmd.OutOrStdout(), snaps)
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot and its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		return e.DeleteSnapshot(cmd.Context(), id)
	},
}

var snapshotItemsCmd = &cobra.Command{
	Use:   "items <id>",
	Short: "Print the raw items stored in a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		items, err := e.SnapshotFetchItems(cmd.Context(), storage.Snapshot{ID: id})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var snapshotValueCmd = &cobra.Command{
	Use:   "value <id>",
	Short: "Print a snapshot's items and total in chaos and divine orbs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		v, err := e.SnapshotValuation(cmd.Context(), storage.Snapshot{ID: id})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), v)
		}
		writeValuation(cmd.OutOrStdout(), v)
		return nil
	},
}

func readItems(path string) ([]inventory.Item, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	items, err := inventory.ParseList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

func writeSnapshots(out io.Writer, snaps []storage.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTAKEN\tREVISION\tVALUE\t")
	for _, s := range snaps {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t\n", s.ID, s.Timestamp.Format("2006-01-02 15:04"), s.PricingRevision, formatChaos(s.Value))
	}
	w.Flush()
}

func writeValuation(out io.Writer, v engine.Valuation) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ITEM\tSTASH\tQTY\tUNIT\tVALUE\t")
	for _, it := range v.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t\n", it.Item.LookupName(), it.StashID, it.Item.Quantity(), formatChaos(it.UnitPrice), formatChaos(it.Price))
	}
	fmt.Fprintln(w, " \t \t \t \t \t")
	fmt.Fprintf(w, "TOTAL\t\t\t\t%s c\t\n", formatChaos(v.TotalChaos))
	fmt.Fprintf(w, "\t\t\t\t%s div\t\n", formatChaos(v.TotalDivine))
	w.Flush()
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotNewCmd, snapshotAddCmd, snapshotSetValueCmd, snapshotListCmd, snapshotDeleteCmd, snapshotItemsCmd, snapshotValueCmd)

	snapshotNewCmd.Flags().Int64("profile", 0, "Profile id")
	snapshotNewCmd.MarkFlagRequired("profile")

	snapshotAddCmd.Flags().Int64("snapshot", 0, "Snapshot id")
	snapshotAddCmd.Flags().String("stash", "", "Stash tab id the items come from")
	snapshotAddCmd.Flags().String("items", "", "JSON file with an item array or a stash tab document (- for stdin)")
	snapshotAddCmd.MarkFlagRequired("snapshot")
	snapshotAddCmd.MarkFlagRequired("stash")
	snapshotAddCmd.MarkFlagRequired("items")

	snapshotSetValueCmd.Flags().Int64("snapshot", 0, "Snapshot id")
	snapshotSetValueCmd.Flags().Int64("value", 0, "New total in chaos orbs")
	snapshotSetValueCmd.MarkFlagRequired("snapshot")
	snapshotSetValueCmd.MarkFlagRequired("value")

	snapshotListCmd.Flags().Int64("profile", 0, "Profile id")
	snapshotListCmd.MarkFlagRequired("profile")

	snapshotValueCmd.Flags().Bool("json", false, "Print the valuation as JSON")
}
