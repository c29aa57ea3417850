// Package item_api provides JSON handlers for ingesting and browsing items.
package item_api

import (
	"context"

	"github.com/google/uuid"

	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/pkg/utils/markdown"
)

const (
	DefaultPerPage = 21
	MaxPerPage     = 100
)

// Submitter is implemented by *pipeline.Service.
type Submitter interface {
	Submit(ctx context.Context, rawURL string) (*db.Item, bool, error)
}

// ItemReader is implemented by *db.Queries.
type ItemReader interface {
	GetItem(ctx context.Context, id uuid.UUID) (*db.Item, error)
	ListItemsPage(ctx context.Context, limit, offset int) ([]*db.Item, error)
	CountItems(ctx context.Context) (int64, error)
}

// itemView is the public JSON shape of an item.
type itemView struct {
	*db.Item
	Markdown *markdown.Markdown `json:"markdown"`
}

func newItemView(item *db.Item) itemView {
	return itemView{Item: item, Markdown: embedFor(item)}
}

func embedFor(item *db.Item) *markdown.Markdown {
	return markdown.ThumbnailLink(item.Title, item.DerivedAssetURL, item.SourceURL)
}
