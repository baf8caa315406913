package connectors

import (
	"context"
	"log/slog"

	"licensescan/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
	Known   int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, created, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if created {
			res.Stored++
		} else {
			res.Known++
		}
	}

	slog.Debug("mail fetched", "label", label, "fetched", res.Fetched, "stored", res.Stored, "known", res.Known)
	return res, nil
}
