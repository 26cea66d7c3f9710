package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/internal/infrastructure/ratelimit"
	"neighborly/pkg/errors"
)

const maxMessageLength = 2000

type ChatUseCase struct {
	chatRepo    repository.ChatRepository
	notifier    *NotificationUseCase
	realtime    RealtimePublisher
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	notifier *NotificationUseCase,
	realtime RealtimePublisher,
	rateLimiter *ratelimit.RateLimiter,
) *ChatUseCase {
	return &ChatUseCase{
		chatRepo:    chatRepo,
		notifier:    notifier,
		realtime:    realtime,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	Body           string
	Type           string // "text" or "image"
	AttachmentURLs []string
}

type ThreadView struct {
	*entity.ChatThread
	Unread int `json:"unread"`
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID, threadID string, input SendMessageInput) (*entity.Message, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(senderID, ratelimit.ActionSendMessage); !allowed {
			log.Printf("SendMessage rate limited: user %s must wait %v", senderID, wait)
			return nil, errors.TooManyRequests(fmt.Sprintf("Rate limit exceeded, retry in %s", wait.Round(time.Second)), nil)
		}
	}

	body := strings.TrimSpace(input.Body)
	if body == "" && len(input.AttachmentURLs) == 0 {
		return nil, errors.Validation("message body is required", nil)
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, errors.Validation(fmt.Sprintf("message body must be at most %d characters", maxMessageLength), nil)
	}
	msgType := input.Type
	switch msgType {
	case "":
		msgType = "text"
	case "text", "image":
	default:
		return nil, errors.Validation("type must be one of: text image", nil)
	}

	thread, err := uc.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(senderID) {
		return nil, errors.Unauthorized("You are not a participant in this chat", nil)
	}
	if thread.State != entity.ThreadOpen {
		return nil, errors.InvalidTransition(fmt.Sprintf("Chat is %s", thread.State))
	}

	message := &entity.Message{
		ThreadID:       threadID,
		SenderID:       senderID,
		Body:           body,
		Type:           msgType,
		AttachmentURLs: input.AttachmentURLs,
	}
	thread, err = uc.chatRepo.AppendMessage(ctx, message)
	if err != nil {
		return nil, err
	}

	recipientID := thread.Counterpart(senderID)
	if uc.realtime.IsInRoom(threadID, recipientID) {
		if _, err := uc.chatRepo.MarkDelivered(ctx, threadID, recipientID); err != nil {
			log.Printf("Failed to mark message %s delivered: %v", message.ID, err)
		} else {
			message.Status = message.Status.Advance(entity.MessageDelivered)
		}
	} else {
		uc.notifier.Notify(ctx, recipientID, entity.NotifyNewMessage, "New message", preview(body), map[string]interface{}{
			"thread_id":  threadID,
			"sender_id":  senderID,
			"message_id": message.ID,
		})
	}

	uc.realtime.PublishToRoom(threadID, "new_message", message)
	uc.realtime.PublishToUser(recipientID, "chat_list_update", map[string]interface{}{
		"thread_id":       threadID,
		"last_message":    thread.LastMessage,
		"last_message_at": thread.LastMessageAt,
		"unread":          thread.UnreadCount[recipientID],
	})

	return message, nil
}

// MarkSeen is allowed on frozen threads so history can still be read to zero.
func (uc *ChatUseCase) MarkSeen(ctx context.Context, readerID, threadID string) error {
	thread, err := uc.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(readerID) {
		return errors.Unauthorized("You are not a participant in this chat", nil)
	}

	changed, err := uc.chatRepo.MarkSeen(ctx, threadID, readerID)
	if err != nil {
		return err
	}

	if changed > 0 {
		uc.realtime.PublishToRoom(threadID, "messages_seen", map[string]string{
			"thread_id": threadID,
			"reader_id": readerID,
		})
	}
	// other devices of the reader reset their badge
	uc.realtime.PublishToUser(readerID, "unread_update", map[string]interface{}{
		"thread_id": threadID,
		"unread":    0,
	})
	return nil
}

// MarkDelivered runs when a participant joins the thread room.
func (uc *ChatUseCase) MarkDelivered(ctx context.Context, userID, threadID string) error {
	thread, err := uc.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(userID) {
		return nil
	}

	changed, err := uc.chatRepo.MarkDelivered(ctx, threadID, userID)
	if err != nil {
		return err
	}
	if changed > 0 {
		uc.realtime.PublishToRoom(threadID, "messages_delivered", map[string]string{
			"thread_id":    threadID,
			"recipient_id": userID,
		})
	}
	return nil
}

func (uc *ChatUseCase) GetHistory(ctx context.Context, userID, threadID string, limit, offset int) ([]*entity.Message, int64, error) {
	thread, err := uc.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return nil, 0, err
	}
	if !thread.IsParticipant(userID) {
		return nil, 0, errors.Unauthorized("You are not a participant in this chat", nil)
	}
	return uc.chatRepo.ListMessages(ctx, threadID, limit, offset)
}

func (uc *ChatUseCase) GetThread(ctx context.Context, userID, threadID string) (*ThreadView, error) {
	thread, err := uc.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(userID) {
		return nil, errors.Unauthorized("You are not a participant in this chat", nil)
	}
	return &ThreadView{ChatThread: thread, Unread: thread.UnreadCount[userID]}, nil
}

// ListConversations collapses every thread with the same counterpart into one entry.
func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	threads, err := uc.chatRepo.ListThreadsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return groupConversations(userID, threads), nil
}

func (uc *ChatUseCase) TotalUnread(ctx context.Context, userID string) (int, error) {
	threads, err := uc.chatRepo.ListThreadsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, t := range threads {
		total += t.UnreadCount[userID]
	}
	return total, nil
}

func groupConversations(userID string, threads []*entity.ChatThread) []*entity.Conversation {
	byCounterpart := make(map[string]*entity.Conversation)
	var order []string

	for _, t := range threads {
		counterpart := t.Counterpart(userID)
		conv, ok := byCounterpart[counterpart]
		if !ok {
			conv = &entity.Conversation{CounterpartID: counterpart}
			byCounterpart[counterpart] = conv
			order = append(order, counterpart)
		}
		conv.ThreadIDs = append(conv.ThreadIDs, t.ID)
		conv.UnreadCount += t.UnreadCount[userID]
		if conv.LatestThread == "" || t.LastMessageAt.After(conv.LastMessageAt) {
			conv.LatestThread = t.ID
			conv.LastMessage = t.LastMessage
			conv.LastMessageAt = t.LastMessageAt
		}
	}

	out := make([]*entity.Conversation, 0, len(order))
	for _, id := range order {
		out = append(out, byCounterpart[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out
}

// openOfferThread creates the read-only thread shown while a direct offer is pending.
func (uc *ChatUseCase) openOfferThread(ctx context.Context, request *entity.ServiceRequest) error {
	thread := &entity.ChatThread{
		ID:           request.ID,
		RequestID:    request.ID,
		RequesterID:  request.RequesterID,
		ProviderID:   request.TargetProviderID,
		Participants: []string{request.RequesterID, request.TargetProviderID},
		State:        entity.ThreadReadOnly,
		UnreadCount:  make(map[string]int),
	}
	if err := uc.chatRepo.CreateThread(ctx, thread); err != nil && !errors.Is(err, errors.CodeConflict) {
		return err
	}

	summary := fmt.Sprintf("Service request: %s, budget %.2f", request.TypeOfWork, request.Budget)
	if request.PreferredDate != "" {
		summary += fmt.Sprintf(", preferred %s %s", request.PreferredDate, request.PreferredTime)
	}
	if request.Address != "" {
		summary += fmt.Sprintf(", at %s", request.Address)
	}
	_, err := uc.chatRepo.AppendMessage(ctx, &entity.Message{
		ThreadID: request.ID,
		SenderID: request.RequesterID,
		Body:     summary,
		Type:     entity.MessageTypeSystem,
	})
	return err
}

// openThread makes the thread writable, creating it for requests accepted from broadcast.
func (uc *ChatUseCase) openThread(ctx context.Context, request *entity.ServiceRequest) error {
	_, err := uc.chatRepo.GetThread(ctx, request.ID)
	switch {
	case err == nil:
		return uc.chatRepo.SetThreadState(ctx, request.ID, entity.ThreadOpen)
	case errors.Is(err, errors.CodeNotFound):
		return uc.chatRepo.CreateThread(ctx, &entity.ChatThread{
			ID:           request.ID,
			RequestID:    request.ID,
			RequesterID:  request.RequesterID,
			ProviderID:   request.AcceptedProviderID,
			Participants: []string{request.RequesterID, request.AcceptedProviderID},
			State:        entity.ThreadOpen,
			UnreadCount:  make(map[string]int),
		})
	default:
		return err
	}
}

func (uc *ChatUseCase) freezeThread(ctx context.Context, threadID string) error {
	err := uc.chatRepo.SetThreadState(ctx, threadID, entity.ThreadFrozen)
	if errors.Is(err, errors.CodeNotFound) {
		return nil
	}
	return err
}

func (uc *ChatUseCase) dropThread(ctx context.Context, threadID string) error {
	return uc.chatRepo.DeleteThread(ctx, threadID)
}

func preview(body string) string {
	const max = 80
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "..."
}
