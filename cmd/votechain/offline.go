package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/jmerrifield20/VoteChain/internal/chain"
	"github.com/jmerrifield20/VoteChain/internal/ledger"
	"github.com/jmerrifield20/VoteChain/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errInvalidChain makes the process exit non-zero after the report is printed.
var errInvalidChain = errors.New("chain is invalid")

var (
	ledgerFile    string
	difficulty    int
	inspectFormat string
)

func addFileFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ledgerFile, "file", "blockchain_data.json", "ledger file written by the file store")
	cmd.Flags().IntVar(&difficulty, "difficulty", chain.DefaultDifficulty, "proof-of-work difficulty the chain was mined at")
}

func init() {
	addFileFlags(verifyCmd)
	addFileFlags(inspectCmd)
	addFileFlags(tallyCmd)
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
}

// loadFile reads the ledger state at path.
func loadFile(ctx context.Context, path string) (*store.State, error) {
	st, err := store.NewFileStore(path, zap.NewNop()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return st, nil
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate a ledger file's hash links and proofs",
	Long: `Verify walks every block of a ledger file, recomputing each predecessor
digest and checking every proof of work. It exits with status 1 when the
chain is broken.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadFile(cmd.Context(), ledgerFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(st.Chain) == 0 {
			fmt.Fprintln(out, "INVALID  chain has no genesis block")
			return errInvalidChain
		}
		if err := ledger.VerifyBlocks(st.Chain, difficulty); err != nil {
			fmt.Fprintf(out, "INVALID  %s\n", err)
			return errInvalidChain
		}
		fmt.Fprintf(out, "VALID    %d blocks, %d pending votes, tip %s\n",
			len(st.Chain), len(st.PendingVotes), chain.Digest(st.Chain[len(st.Chain)-1]))
		return nil
	},
}

// ── inspect ──────────────────────────────────────────────────────────────────

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the blocks of a ledger file",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadFile(cmd.Context(), ledgerFile)
		if err != nil {
			return err
		}

		if inspectFormat == "json" {
			type jsonBlock struct {
				chain.Block
				Hash string `json:"hash"`
			}
			blocks := make([]jsonBlock, len(st.Chain))
			for i, b := range st.Chain {
				blocks[i] = jsonBlock{Block: b, Hash: chain.Digest(b)}
			}
			return printJSON(cmd, map[string]any{
				"chain":         blocks,
				"pending_votes": st.PendingVotes,
				"size_bytes":    len(chain.CanonicalChain(st.Chain)),
			})
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tSEALED AT\tVOTES\tPROOF\tHASH\tPREVIOUS")
		for _, b := range st.Chain {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
				b.Index,
				b.Timestamp.Time().Format("2006-01-02 15:04:05"),
				len(b.Votes),
				b.Proof,
				short(chain.Digest(b)),
				short(b.PreviousHash),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d blocks, %d pending votes\n", len(st.Chain), len(st.PendingVotes))
		return nil
	},
}

// short abbreviates a hex digest for table output.
func short(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}

// ── tally ────────────────────────────────────────────────────────────────────

var tallyCmd = &cobra.Command{
	Use:   "tally",
	Short: "Count sealed votes per candidate in a ledger file",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadFile(cmd.Context(), ledgerFile)
		if err != nil {
			return err
		}

		counts := ledger.TallyBlocks(st.Chain)
		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if counts[ids[i]] != counts[ids[j]] {
				return counts[ids[i]] > counts[ids[j]]
			}
			return ids[i] < ids[j]
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CANDIDATE\tVOTES")
		for _, id := range ids {
			fmt.Fprintf(w, "%s\t%d\n", id, counts[id])
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if n := len(st.PendingVotes); n > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d pending votes not counted\n", n)
		}
		return nil
	},
}
