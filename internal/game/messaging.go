package game

import (
	"time"

	"github.com/google/uuid"
)

// SendDirectMessage sends a private message between two agents. The sender
// must be a known agent; NPC-originated DMs go through internal delivery
// paths, not this operation.
func (s *Session) SendDirectMessage(from, to, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || content == "" || from == to {
		return false
	}
	if _, ok := s.agents[from]; !ok {
		return false
	}
	if _, ok := s.agents[to]; !ok {
		return false
	}
	s.sendDMLocked(from, to, content, "")
	return true
}

// sendDMLocked stores a DM under the unordered pair key and notifies the
// recipient. Clue deliveries pass the clue id. Caller holds the lock.
func (s *Session) sendDMLocked(from, to, content, clueID string) {
	dm := &DirectMessage{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Content:   content,
		ClueID:    clueID,
		Timestamp: time.Now(),
	}
	key := dmKey(from, to)
	s.dms[key] = append(s.dms[key], dm)

	if clueID == "" {
		s.deliverLocked(&Message{
			Type:    MsgDirect,
			To:      to,
			From:    from,
			Content: content,
		})
	}
}

// CreateGroupChat opens a group chat owned by creator with the given
// initial members. The creator is always a member. Returns the chat id, or
// empty string on failure.
func (s *Session) CreateGroupChat(creatorID, name string, memberIDs []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || name == "" {
		return ""
	}
	if _, ok := s.agents[creatorID]; !ok {
		return ""
	}

	chat := &GroupChat{
		ID:        uuid.NewString(),
		Name:      name,
		CreatorID: creatorID,
		Members:   []string{creatorID},
		CreatedAt: time.Now(),
	}
	for _, id := range memberIDs {
		if id == creatorID || chat.HasMember(id) {
			continue
		}
		if _, ok := s.agents[id]; !ok {
			continue
		}
		chat.Members = append(chat.Members, id)
		s.deliverLocked(&Message{
			Type:    MsgGroupInvite,
			To:      id,
			From:    creatorID,
			Content: name,
			Meta:    map[string]any{"chat_id": chat.ID},
		})
	}
	s.chats[chat.ID] = chat
	return chat.ID
}

// InviteToGroupChat adds an agent to an existing chat. Only members can
// invite; duplicate invites fail.
func (s *Session) InviteToGroupChat(chatID, inviterID, inviteeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok || !chat.HasMember(inviterID) || chat.HasMember(inviteeID) {
		return false
	}
	if _, ok := s.agents[inviteeID]; !ok {
		return false
	}

	chat.Members = append(chat.Members, inviteeID)
	s.deliverLocked(&Message{
		Type:    MsgGroupInvite,
		To:      inviteeID,
		From:    inviterID,
		Content: chat.Name,
		Meta:    map[string]any{"chat_id": chat.ID},
	})
	return true
}

// LeaveGroupChat removes an agent from a chat. The chat survives with its
// remaining members; empty chats stay queryable for betrayal analysis.
func (s *Session) LeaveGroupChat(chatID, agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok || !chat.HasMember(agentID) {
		return false
	}
	members := chat.Members[:0]
	for _, m := range chat.Members {
		if m != agentID {
			members = append(members, m)
		}
	}
	chat.Members = members
	return true
}

// SendGroupMessage posts into a chat and notifies every other member.
func (s *Session) SendGroupMessage(chatID, senderID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || content == "" {
		return false
	}
	chat, ok := s.chats[chatID]
	if !ok || !chat.HasMember(senderID) {
		return false
	}

	msg := &Post{
		ID:        uuid.NewString(),
		AuthorID:  senderID,
		Content:   content,
		Timestamp: time.Now(),
		Reactions: make(map[string]Reaction),
	}
	chat.Messages = append(chat.Messages, msg)

	for _, member := range chat.Members {
		if member == senderID {
			continue
		}
		s.deliverLocked(&Message{
			Type:    MsgGroupMessage,
			To:      member,
			From:    senderID,
			Content: content,
			Meta:    map[string]any{"chat_id": chat.ID},
		})
	}
	return true
}

// GroupChatByID returns a chat, or nil.
func (s *Session) GroupChatByID(chatID string) *GroupChat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chats[chatID]
}
