package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/CreedTech/relate/domain"
)

type messageRecord struct {
	ID           string    `json:"id"`
	FromUser     string    `json:"from_user"`
	ToUser       string    `json:"to_user"`
	Content      string    `json:"content"`
	Conversation string    `json:"conversation"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageRepository is the durable message store. The broadcast path
// works without it; sessions call it only when persistence is enabled.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

// Create persists a message under the conversation it belongs to.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (m *MessageRepository) Create(fromUser, toUser, content, conversation string) (domain.Message, error) {
	record := messageRecord{
		ID:           uuid.NewString(),
		FromUser:     fromUser,
		ToUser:       toUser,
		Content:      content,
		Conversation: conversation,
		CreatedAt:    time.Now().UTC(),
	}
	key := fmt.Sprintf("msg:%s:%019d:%s",
		record.Conversation,
		record.CreatedAt.UnixNano(),
		record.ID,
	)

	data, err := json.Marshal(record)
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return domain.Message{}, err
	}

	return toMessage(record), nil
}

// Recent returns up to limit messages of a conversation, newest
// first. Thanks to the padded timestamp in the key, a reverse prefix
// scan yields them already sorted by time.
func (m *MessageRepository) Recent(conversation string, limit int) ([]domain.Message, error) {
	var records []messageRecord

	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", conversation))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this prefix, then
		// walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(records) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var record messageRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Map(records, func(record messageRecord, _ int) domain.Message {
		return toMessage(record)
	}), nil
}

func toMessage(record messageRecord) domain.Message {
	return domain.Message{
		ID:           uuid.MustParse(record.ID),
		FromUser:     record.FromUser,
		ToUser:       record.ToUser,
		Content:      record.Content,
		Conversation: record.Conversation,
		CreatedAt:    record.CreatedAt,
	}
}
