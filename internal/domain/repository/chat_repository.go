package repository

import (
	"context"

	"neighborly/internal/domain/entity"
)

type ChatRepository interface {
	CreateThread(ctx context.Context, thread *entity.ChatThread) error
	GetThread(ctx context.Context, id string) (*entity.ChatThread, error)
	SetThreadState(ctx context.Context, id string, state entity.ThreadState) error
	DeleteThread(ctx context.Context, id string) error
	ListThreadsByUser(ctx context.Context, userID string) ([]*entity.ChatThread, error)

	// AppendMessage assigns the next sequence number and bumps the unread
	// counter of every participant but the sender in one atomic step.
	// System messages skip the unread counters; any other message is
	// rejected unless the thread is open.
	AppendMessage(ctx context.Context, message *entity.Message) (*entity.ChatThread, error)
	ListMessages(ctx context.Context, threadID string, limit, offset int) ([]*entity.Message, int64, error)

	// MarkSeen zeroes the reader's unread counter and marks every message from
	// the other side seen. It returns the number of messages whose status changed.
	MarkSeen(ctx context.Context, threadID, readerID string) (int, error)
	// MarkDelivered advances sent messages addressed to recipientID to delivered.
	MarkDelivered(ctx context.Context, threadID, recipientID string) (int, error)
}
