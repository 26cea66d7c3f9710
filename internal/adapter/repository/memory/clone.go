package memory

import "neighborly/internal/domain/entity"

func cloneUser(u *entity.User) *entity.User {
	c := *u
	if u.Location != nil {
		loc := *u.Location
		c.Location = &loc
	}
	c.Skills = append([]string(nil), u.Skills...)
	c.BlockedUsers = append([]string(nil), u.BlockedUsers...)
	return &c
}

func cloneBooking(b *entity.Booking) *entity.Booking {
	c := *b
	c.ProofURIs = append([]string(nil), b.ProofURIs...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	if b.RatedAt != nil {
		t := *b.RatedAt
		c.RatedAt = &t
	}
	return &c
}

func cloneThread(t *entity.ChatThread) *entity.ChatThread {
	c := *t
	c.Participants = append([]string(nil), t.Participants...)
	c.UnreadCount = make(map[string]int, len(t.UnreadCount))
	for k, v := range t.UnreadCount {
		c.UnreadCount[k] = v
	}
	return &c
}

func cloneMessage(m *entity.Message) *entity.Message {
	c := *m
	c.AttachmentURLs = append([]string(nil), m.AttachmentURLs...)
	return &c
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	c := *n
	if n.Meta != nil {
		c.Meta = make(map[string]interface{}, len(n.Meta))
		for k, v := range n.Meta {
			c.Meta[k] = v
		}
	}
	if n.ReadAt != nil {
		t := *n.ReadAt
		c.ReadAt = &t
	}
	return &c
}
