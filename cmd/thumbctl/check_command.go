package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"thirdcoast.systems/thumbwatch/internal/videoid"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check <item-id|youtube-url>",
		Short: "Run a monitor check now and rearm the next one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withBackend(cmd.Context(), func(b backend) error {
				res, err := b.Check(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s, next interval %dd\n", res.ItemID, res.Outcome, res.IntervalDays)
				if res.Err != nil {
					fmt.Fprintf(out, "  cause: %v\n", res.Err)
				}
				if res.NextCheckAt != nil {
					fmt.Fprintf(out, "  next check %s\n", res.NextCheckAt.UTC().Format("2006-01-02 15:04 MST"))
				} else {
					fmt.Fprintln(out, "  not rearmed, the next reconcile sweep will repair it")
				}
				return nil
			})
		},
	}
}

// resolveItemID accepts an item UUID or any URL form of a video.
func resolveItemID(arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	sourceID, err := videoid.Normalize(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%q is neither an item id nor a YouTube URL", arg)
	}
	return videoid.ItemID(sourceID), nil
}
