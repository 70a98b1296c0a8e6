package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loothound/loothound/internal/utils"
	"github.com/loothound/loothound/pkg/storage"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		league, _ := cmd.Flags().GetString("league")
		pricingLeague, _ := cmd.Flags().GetString("pricing-league")
		stashes, _ := cmd.Flags().GetString("stashes")
		if pricingLeague == "" {
			pricingLeague = league
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.CreateProfile(cmd.Context(), name, utils.SplitList(stashes), league, pricingLeague)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		profiles, err := e.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLEAGUE\tPRICING\tSTASHES\t")
		for _, p := range profiles {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", p.Profile.ID, p.Profile.Name, p.Profile.LeagueID, p.Profile.PricingLeague, strings.Join(p.Stashes, ","))
		}
		return w.Flush()
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a profile and replace its stash list",
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

		var current storage.ProfileWithStashes
		profiles, err := e.ListProfiles(cmd.Context())
		if err != nil {
			return err
		}
		found := false
		for _, p := range profiles {
			if p.Profile.ID == id {
				current, found = p, true
				break
			}
		}
		if !found {
			return fmt.Errorf("profile %d not found", id)
		}

		p := current.Profile
		if cmd.Flags().Changed("name") {
			p.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("league") {
			p.LeagueID, _ = cmd.Flags().GetString("league")
		}
		if cmd.Flags().Changed("pricing-league") {
			p.PricingLeague, _ = cmd.Flags().GetString("pricing-league")
		}
		stashIDs := current.Stashes
		if cmd.Flags().Changed("stashes") {
			s, _ := cmd.Flags().GetString("stashes")
			stashIDs = utils.SplitList(s)
		}

		updated, err := e.UpdateProfile(cmd.Context(), p, stashIDs)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), updated)
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile with all its snapshots",
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

		return e.DeleteProfile(cmd.Context(), id)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileUpdateCmd, profileDeleteCmd)

	for _, c := range []*cobra.Command{profileCreateCmd, profileUpdateCmd} {
		c.Flags().String("name", "", "Profile name")
		c.Flags().String("league", "", "League the stashes belong to")
		c.Flags().String("pricing-league", "", "League whose prices value the snapshots (defaults to --league)")
		c.Flags().String("stashes", "", "Comma-separated stash ids")
	}
	profileCreateCmd.MarkFlagRequired("name")
	profileCreateCmd.MarkFlagRequired("league")
}
