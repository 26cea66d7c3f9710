package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/utils"
)

type chatRepository struct {
	mu       sync.RWMutex
	threads  map[string]*entity.ChatThread
	messages map[string][]*entity.Message
}

func NewChatRepository() repository.ChatRepository {
	return &chatRepository{
		threads:  make(map[string]*entity.ChatThread),
		messages: make(map[string][]*entity.Message),
	}
}

func (r *chatRepository) CreateThread(ctx context.Context, thread *entity.ChatThread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.threads[thread.ID]; exists {
		return errors.Conflict("Chat thread already exists")
	}
	now := time.Now()
	thread.CreatedAt = now
	thread.UpdatedAt = now
	if thread.UnreadCount == nil {
		thread.UnreadCount = make(map[string]int)
	}
	r.threads[thread.ID] = cloneThread(thread)
	return nil
}

func (r *chatRepository) GetThread(ctx context.Context, id string) (*entity.ChatThread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thread, ok := r.threads[id]
	if !ok {
		return nil, errors.NotFound("Chat thread", nil)
	}
	return cloneThread(thread), nil
}

func (r *chatRepository) SetThreadState(ctx context.Context, id string, state entity.ThreadState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[id]
	if !ok {
		return errors.NotFound("Chat thread", nil)
	}
	thread.State = state
	thread.UpdatedAt = time.Now()
	return nil
}

func (r *chatRepository) DeleteThread(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.threads, id)
	delete(r.messages, id)
	return nil
}

func (r *chatRepository) ListThreadsByUser(ctx context.Context, userID string) ([]*entity.ChatThread, error) {
	r.mu.RLock()
	var out []*entity.ChatThread
	for _, thread := range r.threads {
		if thread.IsParticipant(userID) {
			out = append(out, cloneThread(thread))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, message *entity.Message) (*entity.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[message.ThreadID]
	if !ok {
		return nil, errors.NotFound("Chat thread", nil)
	}
	if !message.IsSystem() && thread.State != entity.ThreadOpen {
		return nil, errors.InvalidTransition("Chat thread is not accepting messages")
	}

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	now := time.Now()
	thread.LastSeq++
	message.Seq = thread.LastSeq
	message.CreatedAt = now
	if message.Status == "" {
		message.Status = entity.MessageSent
	}

	if !message.IsSystem() {
		for _, p := range thread.Participants {
			if p != message.SenderID {
				thread.UnreadCount[p]++
			}
		}
	}
	thread.LastMessage = message.Body
	thread.LastMessageAt = now
	thread.UpdatedAt = now

	r.messages[thread.ID] = append(r.messages[thread.ID], cloneMessage(message))
	return cloneThread(thread), nil
}

func (r *chatRepository) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.threads[threadID]; !ok {
		return nil, 0, errors.NotFound("Chat thread", nil)
	}
	all := r.messages[threadID]
	start, end := utils.Window(len(all), limit, offset)

	out := make([]*entity.Message, 0, end-start)
	for _, m := range all[start:end] {
		out = append(out, cloneMessage(m))
	}
	return out, int64(len(all)), nil
}

func (r *chatRepository) MarkSeen(ctx context.Context, threadID, readerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[threadID]
	if !ok {
		return 0, errors.NotFound("Chat thread", nil)
	}
	thread.UnreadCount[readerID] = 0
	return advance(r.messages[threadID], readerID, entity.MessageSeen), nil
}

func (r *chatRepository) MarkDelivered(ctx context.Context, threadID, recipientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[threadID]; !ok {
		return 0, errors.NotFound("Chat thread", nil)
	}
	return advance(r.messages[threadID], recipientID, entity.MessageDelivered), nil
}

func advance(messages []*entity.Message, recipientID string, to entity.MessageStatus) int {
	changed := 0
	for _, m := range messages {
		if m.SenderID == recipientID {
			continue
		}
		if next := m.Status.Advance(to); next != m.Status {
			m.Status = next
			changed++
		}
	}
	return changed
}
