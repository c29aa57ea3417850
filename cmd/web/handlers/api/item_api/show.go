package item_api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/thumbwatch/cmd/web/handlers/common"
	"thirdcoast.systems/thumbwatch/internal/db"
)

func HandleShow(items ItemReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		item, err := items.GetItem(c.Request().Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return common.ErrNotFound("item not found")
		}
		if err != nil {
			slog.Error("failed to load item", "item_id", id, "error", err)
			return common.ErrInternal("failed to load item")
		}
		return c.JSON(http.StatusOK, newItemView(item))
	}
}
