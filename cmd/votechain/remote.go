package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/VoteChain/internal/identity"
	"github.com/jmerrifield20/VoteChain/pkg/client"
	"github.com/spf13/cobra"
)

// ── admin-token ──────────────────────────────────────────────────────────────

var (
	adminSecret string
	adminTTL    time.Duration
)

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Mint an admin bearer token from the server's admin secret",
	Long: `admin-token signs an HS256 token accepted by the admin routes of a
votechaind configured with the same server.admin_secret.

  export VOTECHAIN_ADMIN_TOKEN=$(votechain admin-token --secret "$SECRET")`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tok, err := identity.NewAdminTokenIssuer(adminSecret).Issue(adminTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	adminTokenCmd.Flags().StringVar(&adminSecret, "secret", "", "server admin secret (required)")
	adminTokenCmd.Flags().DurationVar(&adminTTL, "ttl", identity.DefaultAdminTTL, "token lifetime")
	_ = adminTokenCmd.MarkFlagRequired("secret")
}

// ── status ───────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the ledger and election state of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		ov, err := c.Overview(ctx)
		if err != nil {
			return err
		}
		vr, err := c.Verify(ctx)
		if err != nil {
			return err
		}
		el, err := c.Election(ctx)
		if err != nil {
			return err
		}

		valid := "yes"
		if !vr.Valid {
			valid = "NO: " + vr.Error
		}
		open := "closed"
		if el.Open {
			open = "open"
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Server:\t%s\n", serverURL)
		fmt.Fprintf(w, "Blocks:\t%d\n", ov.Blocks)
		fmt.Fprintf(w, "Pending votes:\t%d / %d\n", ov.Pending, ov.BatchThreshold)
		fmt.Fprintf(w, "Tip:\t#%d %s\n", ov.TipIndex, ov.TipHash)
		fmt.Fprintf(w, "Size:\t%d bytes\n", ov.SizeBytes)
		fmt.Fprintf(w, "Difficulty:\t%d\n", ov.Difficulty)
		fmt.Fprintf(w, "Chain valid:\t%s\n", valid)
		fmt.Fprintf(w, "Election:\t%s (%s to %s)\n", open,
			el.Start.Format(time.RFC3339), el.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Registered:\t%d voters, %d candidates\n", el.Voters, el.Candidates)
		return w.Flush()
	},
}

// ── results ──────────────────────────────────────────────────────────────────

var resultsFormat string

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the sealed tally of a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		res, err := c.Results(cmd.Context())
		if err != nil {
			return err
		}
		if resultsFormat == "json" {
			return printJSON(cmd, res)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CANDIDATE\tPARTY\tVOTES")
		for _, r := range res.Results {
			fmt.Fprintf(w, "%s\t%s\t%d\n", r.Candidate.Name, r.Candidate.Party, r.VoteCount)
		}
		fmt.Fprintf(w, "\t\t\nTOTAL\t\t%d\n", res.TotalVotes)
		return w.Flush()
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsFormat, "format", "text", "Output format: text or json")
}
