package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) threads() *firestore.CollectionRef {
	return r.client.Collection("chatThreads")
}

func (r *firestoreChatRepository) CreateThread(ctx context.Context, thread *entity.ChatThread) error {
	now := time.Now()
	thread.CreatedAt = now
	thread.UpdatedAt = now
	if thread.UnreadCount == nil {
		thread.UnreadCount = make(map[string]int)
	}

	_, err := r.threads().Doc(thread.ID).Create(ctx, thread)
	if err != nil {
		return storeError(err, "Chat thread", "Failed to create chat thread")
	}
	return nil
}

func (r *firestoreChatRepository) GetThread(ctx context.Context, id string) (*entity.ChatThread, error) {
	doc, err := r.threads().Doc(id).Get(ctx)
	if err != nil {
		return nil, storeError(err, "Chat thread", "Failed to get chat thread")
	}

	var thread entity.ChatThread
	if err := doc.DataTo(&thread); err != nil {
		return nil, errors.Internal("Failed to parse chat thread data", err)
	}
	return &thread, nil
}

func (r *firestoreChatRepository) SetThreadState(ctx context.Context, id string, state entity.ThreadState) error {
	_, err := r.threads().Doc(id).Update(ctx, []firestore.Update{
		{Path: "state", Value: state},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		return storeError(err, "Chat thread", "Failed to update chat thread")
	}
	return nil
}

func (r *firestoreChatRepository) DeleteThread(ctx context.Context, id string) error {
	ref := r.threads().Doc(id)

	// Subcollections are not removed with their parent document.
	docs, err := ref.Collection("messages").Documents(ctx).GetAll()
	if err != nil {
		return storeError(err, "Chat thread", "Failed to list chat messages")
	}
	bw := r.client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := bw.Delete(doc.Ref); err != nil {
			log.Printf("Failed to queue delete of message %s: %v", doc.Ref.ID, err)
		}
	}
	bw.End()

	if _, err := ref.Delete(ctx); err != nil {
		return storeError(err, "Chat thread", "Failed to delete chat thread")
	}
	return nil
}

func (r *firestoreChatRepository) ListThreadsByUser(ctx context.Context, userID string) ([]*entity.ChatThread, error) {
	query := r.threads().Where("participants", "array-contains", userID).OrderBy("updatedAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching threads for user %s: %v", userID, err)
		return nil, storeError(err, "Chat thread", "Failed to fetch chat threads")
	}

	threads := make([]*entity.ChatThread, 0, len(docs))
	for _, doc := range docs {
		var thread entity.ChatThread
		if err := doc.DataTo(&thread); err != nil {
			log.Printf("Error parsing chat thread %s: %v", doc.Ref.ID, err)
			continue
		}
		threads = append(threads, &thread)
	}
	return threads, nil
}

func (r *firestoreChatRepository) AppendMessage(ctx context.Context, message *entity.Message) (*entity.ChatThread, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Status == "" {
		message.Status = entity.MessageSent
	}
	ref := r.threads().Doc(message.ThreadID)

	var updated entity.ChatThread
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var thread entity.ChatThread
		if err := doc.DataTo(&thread); err != nil {
			return errors.Internal("Failed to parse chat thread data", err)
		}
		if !message.IsSystem() && thread.State != entity.ThreadOpen {
			return errors.InvalidTransition("Chat thread is not accepting messages")
		}

		now := time.Now()
		thread.LastSeq++
		message.Seq = thread.LastSeq
		message.CreatedAt = now

		if thread.UnreadCount == nil {
			thread.UnreadCount = make(map[string]int)
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

		if err := tx.Set(ref, &thread); err != nil {
			return err
		}
		updated = thread
		return tx.Create(ref.Collection("messages").Doc(message.ID), message)
	})
	if err != nil {
		return nil, storeError(err, "Chat thread", "Failed to append message")
	}
	return &updated, nil
}

func (r *firestoreChatRepository) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := r.GetThread(ctx, threadID); err != nil {
		return nil, 0, err
	}

	query := r.threads().Doc(threadID).Collection("messages").OrderBy("seq", firestore.Asc)

	countDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, storeError(err, "Message", "Failed to count messages")
	}
	total := int64(len(countDocs))

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, storeError(err, "Message", "Failed to iterate messages")
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			log.Printf("Error parsing message data for thread %s: %v", threadID, err)
			continue
		}
		messages = append(messages, &message)
	}
	return messages, total, nil
}

func (r *firestoreChatRepository) MarkSeen(ctx context.Context, threadID, readerID string) (int, error) {
	return r.advance(ctx, threadID, readerID, entity.MessageSeen, true)
}

func (r *firestoreChatRepository) MarkDelivered(ctx context.Context, threadID, recipientID string) (int, error) {
	return r.advance(ctx, threadID, recipientID, entity.MessageDelivered, false)
}

func (r *firestoreChatRepository) advance(ctx context.Context, threadID, recipientID string, to entity.MessageStatus, resetUnread bool) (int, error) {
	ref := r.threads().Doc(threadID)
	pending := []string{string(entity.MessageSent)}
	if to == entity.MessageSeen {
		pending = append(pending, string(entity.MessageDelivered))
	}

	changed := 0
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = 0
		if _, err := tx.Get(ref); err != nil {
			return err
		}
		docs, err := tx.Documents(ref.Collection("messages").Where("status", "in", pending)).GetAll()
		if err != nil {
			return err
		}

		for _, doc := range docs {
			var message entity.Message
			if err := doc.DataTo(&message); err != nil {
				continue
			}
			if message.SenderID == recipientID {
				continue
			}
			if err := tx.Update(doc.Ref, []firestore.Update{{Path: "status", Value: message.Status.Advance(to)}}); err != nil {
				return err
			}
			changed++
		}

		if resetUnread {
			return tx.Update(ref, []firestore.Update{
				{FieldPath: firestore.FieldPath{"unreadCount", recipientID}, Value: 0},
			})
		}
		return nil
	})
	if err != nil {
		return 0, storeError(err, "Chat thread", "Failed to update message status")
	}
	return changed, nil
}
