package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thirdcoast.systems/thumbwatch/pkg/utils/markdown"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <youtube-url>...",
		Short: "Ingest videos and print their markdown snippets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(b backend) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, raw := range args {
					item, created, err := b.Submit(cmd.Context(), raw)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", raw, err)
						continue
					}
					state := "existing"
					if created {
						state = "created"
					}
					fmt.Fprintf(out, "%s %s\n", item.ID, state)
					fmt.Fprintln(out, markdown.ThumbnailLink(item.Title, item.DerivedAssetURL, item.SourceURL))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d ingests failed", failed, len(args))
				}
				return nil
			})
		},
	}
}
