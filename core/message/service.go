package message

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
)

var (
	// errors
	ErrNotFound = errors.New("message not found")

	errSelfMessage     = "you cannot send a message to yourself"
	errUnknownReceiver = "no profile matches this receiver"
	errNestedReply     = "replies can only be made to the first message of a thread"
	errWrongReceiver   = "a reply must be sent to the other participant of the thread"
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, m Message, exec ...core.DBExecutor) (Message, error)
		GetMessage(ctx context.Context, id string, exec ...core.DBExecutor) (Message, error)
		// QueryThreads returns the root messages sent or received by userID, most recent first.
		QueryThreads(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Message, error)
		// QueryReplies returns the replies to rootID, oldest first.
		QueryReplies(ctx context.Context, rootID string, exec ...core.DBExecutor) ([]Message, error)
		// MarkThreadRead marks rootID and its replies received by readerID as read.
		// It returns the number of messages that were unread.
		MarkThreadRead(ctx context.Context, rootID, readerID string, exec ...core.DBExecutor) (int, error)
		CountUnread(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo      Repository
		profiles  profile.Repository
		validate  *core.Validator
		publisher core.Publisher
		tracker   *core.Tracker
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	profiles profile.Repository,
	validate *core.Validator,
	publisher core.Publisher,
	tracker *core.Tracker,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		profiles:  profiles,
		validate:  validate,
		publisher: publisher,
		tracker:   tracker,
		logger:    logger,
	}
}

// Send writes a new message, starting a thread or replying to one, then notifies subscribers.
func (svc *Service) Send(ctx context.Context, actor authz.Identity, nm NewMessage) (Message, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return Message{}, err
	}
	nm.Clean()
	if err := svc.validate.Struct(nm); err != nil {
		return Message{}, err
	}
	if actor.Is(nm.ReceiverID) {
		return Message{}, core.NewFieldError("receiver_id", errSelfMessage)
	}

	if _, err := svc.profiles.GetProfileByID(ctx, nm.ReceiverID); err != nil {
		if errors.Cause(err) == profile.ErrNotFound {
			return Message{}, core.NewFieldError("receiver_id", errUnknownReceiver)
		}
		return Message{}, core.RepoError(err, "getting receiver", nil, "")
	}

	if nm.ParentID != "" {
		parent, err := svc.visibleMessage(ctx, actor, nm.ParentID)
		if err != nil {
			return Message{}, err
		}
		if !parent.IsRoot() {
			return Message{}, core.NewFieldError("parent_message_id", errNestedReply)
		}
		if nm.ReceiverID != parent.Counterpart(actor.ID) {
			return Message{}, core.NewFieldError("receiver_id", errWrongReceiver)
		}
	}

	m := Message{
		SenderID:   actor.ID,
		ReceiverID: nm.ReceiverID,
		Content:    nm.Content,
		ParentID:   nm.ParentID,
		CreatedAt:  core.Now(),
	}
	m, err := svc.repo.CreateMessage(ctx, m)
	if err != nil {
		return Message{}, core.RepoError(err, "creating message", nil, "")
	}

	evt := Event{Type: EventMessageCreated, Message: m}
	svc.publish(ctx, core.ThreadTopic(m.RootID()), evt)
	svc.publish(ctx, core.InboxTopic(m.ReceiverID), evt)

	svc.tracker.Track(ctx, core.EventMessageSent, map[string]string{
		"message_id":  m.ID,
		"thread_id":   m.RootID(),
		"sender_id":   m.SenderID,
		"receiver_id": m.ReceiverID,
		"is_reply":    strconv.FormatBool(!m.IsRoot()),
	})
	return m, nil
}

// ListThreads returns the threads the actor takes part in, most recent first.
func (svc *Service) ListThreads(ctx context.Context, actor authz.Identity) ([]Message, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return nil, err
	}
	roots, err := svc.repo.QueryThreads(ctx, actor.ID)
	return roots, core.RepoError(err, "querying threads", nil, "")
}

// GetThread returns the thread rooted at rootID if the actor takes part in it.
func (svc *Service) GetThread(ctx context.Context, actor authz.Identity, rootID string) (Thread, error) {
	root, err := svc.visibleRoot(ctx, actor, rootID)
	if err != nil {
		return Thread{}, err
	}
	replies, err := svc.repo.QueryReplies(ctx, root.ID)
	if err != nil {
		return Thread{}, core.RepoError(err, "querying replies", nil, "")
	}
	return Thread{Root: root, Replies: replies}, nil
}

// MarkThreadRead marks the messages of a thread received by the actor as read.
// Calling it again changes nothing and returns 0.
func (svc *Service) MarkThreadRead(ctx context.Context, actor authz.Identity, rootID string) (int, error) {
	root, err := svc.visibleRoot(ctx, actor, rootID)
	if err != nil {
		return 0, err
	}
	n, err := svc.repo.MarkThreadRead(ctx, root.ID, actor.ID)
	return n, core.RepoError(err, "marking thread read", nil, "")
}

// UnreadCount counts the messages received by the actor and not read yet.
func (svc *Service) UnreadCount(ctx context.Context, actor authz.Identity) (int, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return 0, err
	}
	n, err := svc.repo.CountUnread(ctx, actor.ID)
	return n, core.RepoError(err, "counting unread messages", nil, "")
}

// visibleMessage returns the message id when the actor sent or received it.
// Messages of other users are reported as not found.
func (svc *Service) visibleMessage(ctx context.Context, actor authz.Identity, id string) (Message, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return Message{}, err
	}
	m, err := svc.repo.GetMessage(ctx, id)
	if err != nil {
		return Message{}, core.RepoError(err, "getting message", ErrNotFound, "message")
	}
	if !m.Involves(actor.ID) {
		return Message{}, core.NewNotFoundError("message")
	}
	return m, nil
}

func (svc *Service) visibleRoot(ctx context.Context, actor authz.Identity, rootID string) (Message, error) {
	root, err := svc.visibleMessage(ctx, actor, rootID)
	if err != nil {
		return Message{}, err
	}
	if !root.IsRoot() {
		return Message{}, core.NewNotFoundError("thread")
	}
	return root, nil
}

// publish never fails the write that triggered it: delivery errors are logged.
func (svc *Service) publish(ctx context.Context, topic string, evt Event) {
	if svc.publisher == nil {
		return
	}
	if err := svc.publisher.Publish(ctx, topic, evt); err != nil {
		svc.logger.Warn(fmt.Sprintf("message: publishing to %s: %v", topic, err), err)
	}
}
