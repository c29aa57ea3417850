package item_api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/thumbwatch/cmd/web/handlers/common"
)

type indexResponse struct {
	Items      []itemView `json:"items"`
	TotalCount int64      `json:"total_count"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
}

// HandleIndex returns one page of items, newest first. page is zero-based.
func HandleIndex(items ItemReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		page := max(common.IntQueryParam(c, "page", 0), 0)
		perPage := min(max(common.IntQueryParam(c, "perPage", DefaultPerPage), 1), MaxPerPage)

		ctx := c.Request().Context()
		rows, err := items.ListItemsPage(ctx, perPage, page*perPage)
		if err != nil {
			slog.Error("failed to list items", "error", err)
			return common.ErrInternal("failed to list items")
		}
		total, err := items.CountItems(ctx)
		if err != nil {
			slog.Error("failed to count items", "error", err)
			return common.ErrInternal("failed to list items")
		}

		views := make([]itemView, 0, len(rows))
		for _, row := range rows {
			views = append(views, newItemView(row))
		}
		return c.JSON(http.StatusOK, indexResponse{
			Items:      views,
			TotalCount: total,
			Page:       page,
			PerPage:    perPage,
		})
	}
}
