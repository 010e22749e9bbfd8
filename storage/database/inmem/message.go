package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/message"
)

type messageRepository struct {
	db *DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) CreateMessage(_ context.Context, m message.Message, exec ...core.DBExecutor) (message.Message, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if m.ParentID != "" {
		if _, ok := repo.db.messages[m.ParentID]; !ok {
			return message.Message{}, message.ErrNotFound
		}
	}
	m.ID = uuid.New().String()
	repo.db.messages[m.ID] = m
	repo.db.insert(m.ID)
	repo.db.journal(exec, func() { delete(repo.db.messages, m.ID) })
	return m, nil
}

func (repo *messageRepository) GetMessage(_ context.Context, id string, _ ...core.DBExecutor) (message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.messages[id]; ok {
		return m, nil
	}
	return message.Message{}, message.ErrNotFound
}

// collect returns the messages matching keep, ordered by creation. db.mu must be held.
func (repo *messageRepository) collect(keep func(m message.Message) bool, asc bool) []message.Message {
	ids := make([]string, 0)
	for id, m := range repo.db.messages {
		if keep(m) {
			ids = append(ids, id)
		}
	}
	sortRows(ids, repo.db.order, []core.DBOrdering{{Field: "created_at", Ascending: asc}}, func(id, _ string) interface{} {
		return repo.db.messages[id].CreatedAt
	}, asc)

	msgs := make([]message.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, repo.db.messages[id])
	}
	return msgs
}

func (repo *messageRepository) QueryThreads(_ context.Context, userID string, _ ...core.DBExecutor) ([]message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.collect(func(m message.Message) bool {
		return m.IsRoot() && m.Involves(userID)
	}, false), nil
}

func (repo *messageRepository) QueryReplies(_ context.Context, rootID string, _ ...core.DBExecutor) ([]message.Message, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.collect(func(m message.Message) bool {
		return m.ParentID == rootID
	}, true), nil
}

func (repo *messageRepository) MarkThreadRead(_ context.Context, rootID, readerID string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, m := range repo.db.messages {
		if (m.ID != rootID && m.ParentID != rootID) || m.ReceiverID != readerID || m.IsRead {
			continue
		}
		m.IsRead = true
		repo.db.messages[id] = m
		n++

		unread := id
		repo.db.journal(exec, func() {
			m := repo.db.messages[unread]
			m.IsRead = false
			repo.db.messages[unread] = m
		})
	}
	return n, nil
}

func (repo *messageRepository) CountUnread(_ context.Context, userID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, m := range repo.db.messages {
		if m.ReceiverID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}
