package item_api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/thumbwatch/cmd/web/handlers/common"
	"thirdcoast.systems/thumbwatch/pkg/utils/markdown"
)

type markdownRequest struct {
	URL string `json:"url" validate:"required"`
}

type markdownResponse struct {
	ID           string             `json:"id"`
	Markdown     *markdown.Markdown `json:"markdown"`
	HTML         string             `json:"html"`
	Title        string             `json:"title"`
	URL          string             `json:"url"`
	ThumbnailURL string             `json:"thumbnail_url"`
	Created      bool               `json:"created"`
}

// HandleMarkdown ingests a YouTube URL and answers with the markdown snippet
// that embeds its decorated thumbnail. Submitting a known video returns the
// existing item.
func HandleMarkdown(sub Submitter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req markdownRequest
		if err := c.Bind(&req); err != nil {
			return common.ErrBadRequest("invalid json")
		}
		req.URL = strings.TrimSpace(req.URL)
		if err := c.Validate(&req); err != nil {
			return common.ErrBadRequest("url is required")
		}

		item, created, err := sub.Submit(c.Request().Context(), req.URL)
		if err != nil {
			return common.PipelineError(err)
		}

		md := embedFor(item)
		return c.JSON(http.StatusOK, markdownResponse{
			ID:           item.ID.String(),
			Markdown:     md,
			HTML:         string(md.Render()),
			Title:        item.Title,
			URL:          item.SourceURL,
			ThumbnailURL: item.DerivedAssetURL,
			Created:      created,
		})
	}
}

// HandlePreflight answers CORS preflight requests that reach the handler.
func HandlePreflight() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}
}
