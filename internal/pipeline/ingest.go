package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"thirdcoast.systems/thumbwatch/internal/db"
	"thirdcoast.systems/thumbwatch/internal/videoid"
	"thirdcoast.systems/thumbwatch/internal/youtube"
)

// Ingest turns a free-form URL into a new item. If the video is already
// known it returns an *AlreadyExistsError carrying the existing identity.
func (s *Service) Ingest(ctx context.Context, rawURL string) (*db.Item, error) {
	sourceID, err := s.normalizer.Normalize(rawURL)
	if err != nil {
		return nil, wrap(ErrInvalidReference, "normalize", rawURL, err)
	}

	existing, err := s.items.GetItemBySourceID(ctx, sourceID)
	switch {
	case err == nil:
		return nil, &AlreadyExistsError{ID: existing.ID, SourceID: sourceID}
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("lookup %s: %w", sourceID, err)
	}

	md, err := s.fetcher.FetchMetadata(ctx, sourceID)
	if err != nil {
		return nil, fetchErr("metadata", sourceID, err)
	}
	if md.Title == "" {
		return nil, wrap(ErrInvalidUpstreamMetadata, "metadata", "empty title for "+sourceID, nil)
	}

	thumb, err := s.fetcher.FetchThumbnail(ctx, sourceID)
	if err != nil {
		return nil, fetchErr("thumbnail", sourceID, err)
	}
	fp := s.fingerprint(thumb.Data)

	decorated, err := s.decorator.Decorate(thumb.Data)
	if err != nil {
		return nil, wrap(ErrDecorationFailed, "decorate", sourceID, err)
	}

	key := s.newKey()
	if err := s.assets.Store(ctx, key, decorated); err != nil {
		return nil, wrap(ErrStorageFailed, "store artifact", key, err)
	}

	item, err := s.items.InsertItem(ctx, &db.InsertItemParams{
		ID:                videoid.ItemID(sourceID),
		SourceURL:         videoid.CanonicalURL(sourceID),
		SourceID:          sourceID,
		Title:             md.Title,
		ArtifactKey:       &key,
		OriginalAssetURL:  thumb.URL,
		DerivedAssetURL:   s.assets.URL(key),
		LastFingerprint:   &fp,
		CheckIntervalDays: s.backoff.MinDays,
		LastCheckedAt:     s.now(),
	})
	if err != nil {
		s.discardArtifact(ctx, key)
		if errors.Is(err, db.ErrDuplicate) {
			return nil, s.lostRace(ctx, sourceID)
		}
		return nil, wrap(ErrStorageFailed, "insert item", sourceID, err)
	}

	slog.Info("ingested item", "item_id", item.ID, "source_id", sourceID, "artifact_key", key)

	taskID, runAt, err := s.armAndRecord(ctx, item.ID, item.PendingTaskID, item.CheckIntervalDays)
	if err != nil {
		slog.Error("failed to arm first check", "item_id", item.ID, "error", err)
		return item, nil
	}
	item.PendingTaskID = &taskID
	item.NextCheckAt = &runAt
	return item, nil
}

// Submit is Ingest for callers that treat a known video as success: it
// returns the existing item with created=false.
func (s *Service) Submit(ctx context.Context, rawURL string) (*db.Item, bool, error) {
	item, err := s.Ingest(ctx, rawURL)
	if err == nil {
		return item, true, nil
	}

	var exists *AlreadyExistsError
	if !errors.As(err, &exists) {
		return nil, false, err
	}
	item, err = s.items.GetItem(ctx, exists.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing item %s: %w", exists.ID, err)
	}
	return item, false, nil
}

func (s *Service) lostRace(ctx context.Context, sourceID string) error {
	id := videoid.ItemID(sourceID)
	if winner, err := s.items.GetItemBySourceID(ctx, sourceID); err == nil {
		id = winner.ID
	}
	slog.Info("concurrent ingest lost insert race", "source_id", sourceID, "item_id", id)
	return &AlreadyExistsError{ID: id, SourceID: sourceID}
}

func (s *Service) discardArtifact(ctx context.Context, key string) {
	if err := s.assets.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete orphaned artifact", "artifact_key", key, "error", err)
	}
}

func fetchErr(stage, sourceID string, err error) error {
	if errors.Is(err, youtube.ErrInvalidMetadata) {
		return wrap(ErrInvalidUpstreamMetadata, stage, sourceID, err)
	}
	return wrap(ErrUpstreamUnavailable, stage, sourceID, err)
}
