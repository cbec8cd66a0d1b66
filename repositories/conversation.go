// Package repositories persists the durable records of the chat
// system in BadgerDB. Values are encoded as JSON, the same format the
// system speaks on the wire.
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/CreedTech/relate/domain"
)

type conversationRecord struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationRepository resolves conversation records by name,
// creating them lazily on first use.
type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the conversation stored under name, creating it
// when absent. The bool reports whether this call created it. The
// read-check and the write happen in one transaction, so two
// concurrent connects to a fresh name resolve to a single record and
// only one of them observes created=true.
func (r *ConversationRepository) GetOrCreate(name string) (domain.Conversation, bool, error) {
	var record conversationRecord
	created := false

	update := func(txn *badger.Txn) error {
		key := []byte("conversation:" + name)
		item, err := txn.Get(key)
		if err == nil {
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		record = conversationRecord{Name: name, CreatedAt: time.Now().UTC()}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		created = true
		return txn.Set(key, data)
	}

	err := r.db.Update(update)
	if err == badger.ErrConflict {
		// Another connect created the record first; re-read it.
		created = false
		err = r.db.Update(update)
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}

	return domain.Conversation{Name: record.Name, CreatedAt: record.CreatedAt}, created, nil
}
