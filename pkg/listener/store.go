package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/callbackd/callbackd/pkg/kv"
)

// SubscriptionStore is a typed facade over the KV port, storing
// subscription records grouped under "{operation}:{id_value}".
type SubscriptionStore struct {
	store  kv.Store
	logger *slog.Logger
}

// NewSubscriptionStore opens a store handle from the factory.
func NewSubscriptionStore(ctx context.Context, factory kv.Factory, logger *slog.Logger) (*SubscriptionStore, error) {
	store, err := factory.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	return &SubscriptionStore{store: store, logger: logger}, nil
}

// Insert persists the record and refreshes its group's TTL.
func (s *SubscriptionStore) Insert(ctx context.Context, record *SubscriptionRecord, ttl time.Duration) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode subscription record: %w", err)
	}
	if err := s.store.SetMapField(ctx, record.Key(), record.ID, value, ttl); err != nil {
		return fmt.Errorf("persist subscription record: %w", err)
	}
	s.logger.Debug("subscription record inserted",
		"key", record.Key(), "id", record.ID, "ttl", ttl)
	return nil
}

// List returns every record in the group. Corrupt entries are dropped with
// a warning rather than blocking dispatch for the whole group.
func (s *SubscriptionStore) List(ctx context.Context, operation, idValue string) ([]SubscriptionRecord, error) {
	key := GroupKey(operation, idValue)
	fields, err := s.store.GetMap(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list subscription records: %w", err)
	}

	records := make([]SubscriptionRecord, 0, len(fields))
	for id, value := range fields {
		var record SubscriptionRecord
		if err := json.Unmarshal(value, &record); err != nil {
			s.logger.Warn("dropping corrupt subscription record",
				"key", key, "id", id, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Delete removes a single record from its group.
func (s *SubscriptionStore) Delete(ctx context.Context, operation, idValue, id string) error {
	key := GroupKey(operation, idValue)
	if err := s.store.DeleteMapField(ctx, key, id); err != nil {
		return fmt.Errorf("delete subscription record: %w", err)
	}
	s.logger.Debug("subscription record deleted", "key", key, "id", id)
	return nil
}
