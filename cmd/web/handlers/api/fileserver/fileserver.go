// Package fileserver serves stored assets with conditional request support.
package fileserver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/thumbwatch/internal/assetstore"
)

// AssetCacheControl is sent with every served asset.
const AssetCacheControl = "public, max-age=3600"

// AssetReader loads stored asset bytes by key.
type AssetReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// ETag is the strong validator for data.
func ETag(data []byte) string {
	return fmt.Sprintf(`"%x"`, sha256.Sum256(data))
}

// HandleAsset serves a decorated thumbnail by key. A monitor check can
// replace the content behind a key at any time, so the content hash is the
// only validator: no Last-Modified is sent and If-Modified-Since is ignored.
func HandleAsset(assets AssetReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Param("key")
		data, err := assets.Read(c.Request().Context(), key)
		if errors.Is(err, assetstore.ErrNotFound) || errors.Is(err, assetstore.ErrInvalidKey) {
			return echo.ErrNotFound
		}
		if err != nil {
			slog.Error("failed to read asset", "key", key, "error", err)
			return echo.ErrInternalServerError
		}

		etag := ETag(data)
		h := c.Response().Header()
		h.Set(echo.HeaderCacheControl, AssetCacheControl)
		h.Set("ETag", etag)

		if matchesETag(c.Request().Header.Get("If-None-Match"), etag) {
			return c.NoContent(http.StatusNotModified)
		}
		return c.Blob(http.StatusOK, "image/jpeg", data)
	}
}

// matchesETag applies the weak comparison If-None-Match calls for.
func matchesETag(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
