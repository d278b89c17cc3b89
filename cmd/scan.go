package cmd

import (
	"fmt"
	"io"
	"time"

	"ticket-ledger/internal/payload"
	"ticket-ledger/internal/status"

	"github.com/spf13/cobra"
)

// NewScanCommand builds the offline scanner: it decodes a ticket code and
// runs the gate pre-filter without contacting the ledger.
func NewScanCommand(codec *payload.Codec) *cobra.Command {
	var (
		eventID uint64
		at      string
	)

	command := &cobra.Command{
		Use:   "scan [code]",
		Short: "Decode a ticket code and pre-check it for an event",
		Long:  "Decodes a ticket code (argument or stdin) and checks event, used flag and date offline. The ledger check-in remains authoritative.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			if len(args) == 1 {
				raw = []byte(args[0])
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = data
			}

			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}

			out := cmd.OutOrStdout()
			p, err := codec.Decode(raw)
			if err != nil {
				fmt.Fprintf(out, "REJECT %s: invalid code\n", status.Code(err))
				return err
			}

			fmt.Fprintf(out, "ticket   %s\n", p.TicketID)
			fmt.Fprintf(out, "event    %s %s\n", p.EventID, p.EventTitle)
			fmt.Fprintf(out, "when     %s %s at %s\n", p.EventDate, p.EventTime, p.Location)
			fmt.Fprintf(out, "price    %s\n", p.Price)
			fmt.Fprintf(out, "owner    %s\n", p.OwnerAddress)

			if !cmd.Flags().Changed("event") {
				return nil
			}
			if err := codec.ValidateForCheckIn(p, eventID, now); err != nil {
				fmt.Fprintf(out, "REJECT %s: %v\n", status.Code(err), err)
				return err
			}
			fmt.Fprintln(out, "OK pre-check passed, confirm with the ledger check-in")
			return nil
		},
	}

	command.Flags().Uint64Var(&eventID, "event", 0, "event id the gate admits")
	command.Flags().StringVar(&at, "at", "", "check as of this RFC3339 time instead of now")
	command.SilenceUsage = true

	return command
}
