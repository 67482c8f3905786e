package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type conversationStore struct {
	db db.DBTX
}

func newConversationStore(db db.DBTX) ConversationStore {
	return &conversationStore{db: db}
}

const conversationColumns = `id, assessment_id, user_id, context_type, title, created_at, updated_at`

func (s *conversationStore) Create(ctx context.Context, c *model.Conversation) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO conversations (id, assessment_id, user_id, context_type, title)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.AssessmentID, c.UserID, string(c.ContextType), c.Title).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (s *conversationStore) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListVisible filters with the same rule as model.Conversation.VisibleTo.
func (s *conversationStore) ListVisible(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE assessment_id = $1
		  AND context_type = $2
		  AND (user_id IS NULL OR user_id = $3::text)
		ORDER BY updated_at DESC, id DESC`,
		assessmentID, string(contextType), userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var c model.Conversation
	var contextType string
	if err := row.Scan(&c.ID, &c.AssessmentID, &c.UserID, &contextType, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ContextType = model.ContextType(contextType)
	return &c, nil
}
