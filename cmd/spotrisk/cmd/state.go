package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"spotrisk/ledger"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted engine state",
	Long: `Print the positions, cash balance, daily stats and recent orders
from a state file. Legacy state files are migrated transparently.

Example:
  spotrisk state --file state.json`,
	RunE: runState,
}

var statePath string

func init() {
	rootCmd.AddCommand(stateCmd)

	stateCmd.Flags().StringVarP(&statePath, "file", "f", "state.json", "path to state file")
}

func runState(cmd *cobra.Command, args []string) error {
	store := ledger.NewStore(statePath)
	snap, found, err := store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !found {
		return fmt.Errorf("no state file at %s", statePath)
	}

	mode := "paper"
	if snap.IsLiveMode {
		mode = "live"
	}
	fmt.Printf("State: %s (%s mode, updated %s)\n", statePath, mode, snap.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Cash: $%.2f\n\n", snap.CashBalance)

	if len(snap.Positions) == 0 {
		fmt.Println("No open positions.")
	} else {
		fmt.Printf("Open positions (%d):\n", len(snap.Positions))
		for _, p := range snap.Positions {
			flags := ""
			if p.PartialExitDone {
				flags += " partial-taken"
			}
			if p.IsSniperEntry {
				flags += " sniper"
			}
			fmt.Printf("  %-12s qty %.6f @ %.4f  stop %.4f  high %.4f  regime %s%s\n",
				p.Symbol, p.Quantity, p.EntryPrice, p.StopPrice, p.HighestPrice, p.VolatilityRegime, flags)
		}
	}

	if len(snap.DailyStats) > 0 {
		fmt.Printf("\nDaily stats:\n")
		for day, s := range snap.DailyStats {
			fmt.Printf("  %s  start $%.2f  pnl $%+.2f  trades %d (%dW/%dL)\n",
				day, s.StartEquity, s.RealizedPnLUSD, s.Trades, s.Wins, s.Losses)
		}
	}

	if n := len(snap.OrderHistory); n > 0 {
		show := snap.OrderHistory
		if n > 10 {
			show = show[n-10:]
		}
		fmt.Printf("\nRecent orders (%d of %d):\n", len(show), n)
		for _, o := range show {
			fmt.Printf("  %s  %-4s %-12s %.6f @ %.4f  %s %s\n",
				o.Time.Format("01-02 15:04"), o.Side, o.Symbol, o.Quantity, o.Price, o.Status, o.Reason)
		}
	}
	return nil
}
