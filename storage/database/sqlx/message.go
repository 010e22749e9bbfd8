package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/message"
)

var messageColumns = []string{"id", "sender_id", "receiver_id", "content", "parent_message_id", "is_read", "created_at"}

type messageRow struct {
	ID         string      `db:"id"`
	SenderID   string      `db:"sender_id"`
	ReceiverID string      `db:"receiver_id"`
	Content    string      `db:"content"`
	ParentID   null.String `db:"parent_message_id"`
	IsRead     bool        `db:"is_read"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r messageRow) message() message.Message {
	return message.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		ParentID:   r.ParentID.String,
		IsRead:     r.IsRead,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type messageRepository struct {
	repository
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{repository{db: db}}
}

func (repo messageRepository) selectMessages(ctx context.Context, exec []core.DBExecutor, q sq.SelectBuilder) ([]message.Message, error) {
	var rows []messageRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.message())
	}
	return msgs, nil
}

func (repo messageRepository) CreateMessage(ctx context.Context, m message.Message, exec ...core.DBExecutor) (message.Message, error) {
	m.ID = uuid.New().String()
	q := psql.Insert("messages").
		Columns(messageColumns...).
		Values(m.ID, m.SenderID, m.ReceiverID, m.Content, null.NewString(m.ParentID, m.ParentID != ""), m.IsRead, m.CreatedAt).
		Suffix("RETURNING " + columns("", messageColumns...))

	var row messageRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return row.message(), nil
}

func (repo messageRepository) GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (message.Message, error) {
	if !validID(id) {
		return message.Message{}, message.ErrNotFound
	}
	q := psql.Select(messageColumns...).From("messages").Where(sq.Eq{"id": id})

	var row messageRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if isNoRows(err) {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, errors.Wrap(err, "finding message")
	}
	return row.message(), nil
}

func (repo messageRepository) QueryThreads(ctx context.Context, userID string, exec ...core.DBExecutor) ([]message.Message, error) {
	if !validID(userID) {
		return []message.Message{}, nil
	}
	q := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"parent_message_id": nil}).
		Where(sq.Or{sq.Eq{"sender_id": userID}, sq.Eq{"receiver_id": userID}}).
		OrderBy("created_at DESC")
	return repo.selectMessages(ctx, exec, q)
}

func (repo messageRepository) QueryReplies(ctx context.Context, rootID string, exec ...core.DBExecutor) ([]message.Message, error) {
	if !validID(rootID) {
		return []message.Message{}, nil
	}
	q := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"parent_message_id": rootID}).
		OrderBy("created_at ASC")
	return repo.selectMessages(ctx, exec, q)
}

func (repo messageRepository) MarkThreadRead(ctx context.Context, rootID, readerID string, exec ...core.DBExecutor) (int, error) {
	if !validID(rootID) || !validID(readerID) {
		return 0, nil
	}
	q := psql.Update("messages").
		Set("is_read", true).
		Where(sq.Or{sq.Eq{"id": rootID}, sq.Eq{"parent_message_id": rootID}}).
		Where(sq.Eq{"receiver_id": readerID, "is_read": false})

	n, err := execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return 0, errors.Wrap(err, "marking thread read")
	}
	return n, nil
}

func (repo messageRepository) CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	q := psql.Select("COUNT(*)").From("messages").Where(sq.Eq{"receiver_id": userID, "is_read": false})

	var n int
	if err := getRow(ctx, repo.getExec(exec), &n, q); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return n, nil
}
