package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
)

func newSlotsCmd(o *rootOptions) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the remaining signup dates of the year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now()
			if from != "" {
				t, err := ledger.ParseDateKey(from)
				if err != nil {
					return fmt.Errorf("invalid --from date: %w", err)
				}
				ref = t
			}

			w := cmd.OutOrStdout()
			for key := range o.cfg.Calendar().Slots(ref) {
				fmt.Fprintf(w, "%s  %s\n", key, ledger.LongDate(key))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "reference date (YYYY-MM-DD), default today")
	return cmd
}
