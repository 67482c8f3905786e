package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type messageStore struct {
	db db.DBTX
}

func newMessageStore(db db.DBTX) MessageStore {
	return &messageStore{db: db}
}

const messageColumns = `id, conversation_id, role, content, input_tokens, output_tokens, model, metadata, created_at`

// Create appends a message and bumps the conversation's updated_at so
// history lists the most recently active thread first.
func (s *messageStore) Create(ctx context.Context, m *model.Message) error {
	meta, err := encodeMetadata(m.Metadata)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx, `
		WITH touched AS (
			UPDATE conversations SET updated_at = now() WHERE id = $2
		)
		INSERT INTO conversation_messages (id, conversation_id, role, content, input_tokens, output_tokens, model, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		m.ID, m.ConversationID, string(m.Role), m.Content, m.InputTokens, m.OutputTokens, m.Model, meta).
		Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (s *messageStore) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	row := s.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM conversation_messages WHERE id = $1`, id)
	m, err := scanMessage(row)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (s *messageStore) ListByConversation(ctx context.Context, conversationID int64) ([]model.Message, error) {
	byConv, err := s.ListByConversations(ctx, []int64{conversationID})
	if err != nil {
		return nil, err
	}
	return byConv[conversationID], nil
}

// ListByConversations returns messages grouped by conversation, each group in creation order.
func (s *messageStore) ListByConversations(ctx context.Context, conversationIDs []int64) (map[int64][]model.Message, error) {
	out := make(map[int64][]model.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM conversation_messages
		WHERE conversation_id = ANY($1)
		ORDER BY created_at, id`, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out[m.ConversationID] = append(out[m.ConversationID], *m)
	}
	return out, rows.Err()
}

func (s *messageStore) SetMetadata(ctx context.Context, id int64, meta *model.MessageMetadata) error {
	raw, err := encodeMetadata(meta)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE conversation_messages SET metadata = $2 WHERE id = $1`, id, raw)
	if err != nil {
		return fmt.Errorf("updating message metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeMetadata(meta *model.MessageMetadata) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding message metadata: %w", err)
	}
	return raw, nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var role string
	var meta []byte
	if err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.InputTokens, &m.OutputTokens,
		&m.Model, &meta, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Role = model.MessageRole(role)
	if len(meta) > 0 {
		m.Metadata = &model.MessageMetadata{}
		if err := json.Unmarshal(meta, m.Metadata); err != nil {
			return nil, fmt.Errorf("decoding message metadata: %w", err)
		}
	}
	return &m, nil
}
