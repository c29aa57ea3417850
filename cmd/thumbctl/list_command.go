package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thirdcoast.systems/thumbwatch/internal/db"
)

const maxTitleWidth = 48

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit, page int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			if page < 0 {
				return fmt.Errorf("--page must not be negative")
			}
			return ctx.withBackend(cmd.Context(), func(b backend) error {
				items, err := b.ListItemsPage(cmd.Context(), limit, page*limit)
				if err != nil {
					return err
				}
				if asJSON {
					if items == nil {
						items = []*db.Item{}
					}
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items")
					return nil
				}
				total, err := b.CountItems(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Video", "Title", "Interval", "Next check", "Last check", "Changes"},
					buildItemRows(items, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				fmt.Fprintf(out, "%d-%d of %s items\n", page*limit+1, page*limit+len(items), humanize.Comma(total))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 25, "Items per page")
	cmd.Flags().IntVar(&page, "page", 0, "Zero-based page number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func buildItemRows(items []*db.Item, now time.Time) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID.String()[:8],
			item.SourceID,
			truncate(item.Title, maxTitleWidth),
			strconv.Itoa(item.CheckIntervalDays) + "d",
			relative(item.NextCheckAt, now, "unscheduled"),
			lastCheck(item, now),
			strconv.Itoa(item.ChangeCount),
		})
	}
	return rows
}

func lastCheck(item *db.Item, now time.Time) string {
	if item.LastCheckedAt == nil {
		return "never"
	}
	s := humanize.RelTime(*item.LastCheckedAt, now, "ago", "from now")
	if item.LastCheckOutcome != nil {
		s += " (" + *item.LastCheckOutcome + ")"
	}
	return s
}

func relative(t *time.Time, now time.Time, missing string) string {
	if t == nil {
		return missing
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

func truncate(s string, width int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= width {
		return string(r)
	}
	return string(r[:width-1]) + "…"
}
