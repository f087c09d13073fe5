package game

import (
	"strings"
)

// PostToFeed publishes a post by the given agent. Fails for unknown
// authors, empty content, or an ended session. Mentions are parsed,
// deduplicated, and each mentioned agent (never the author) gets a private
// notification.
func (s *Session) PostToFeed(authorID, content, replyTo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || content == "" {
		return false
	}
	if _, ok := s.agents[authorID]; !ok {
		return false
	}
	if replyTo != "" {
		if _, ok := s.postIndex[replyTo]; !ok {
			replyTo = ""
		}
	}
	s.appendPostLocked(authorID, content, replyTo)
	return true
}

// parseMentionsLocked extracts @tokens and matches them against agent ids
// and case-insensitive display names. Deduplicated, in order of first
// appearance. Caller holds the lock.
func (s *Session) parseMentionsLocked(content string) []string {
	var mentions []string
	seen := make(map[string]bool)

	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "@") {
			continue
		}
		token := strings.TrimPrefix(word, "@")
		token = strings.TrimRight(token, ".,!?:;)'\"")
		if token == "" {
			continue
		}

		var matched string
		if _, ok := s.agents[token]; ok {
			matched = token
		} else {
			for id, a := range s.agents {
				if strings.EqualFold(a.DisplayName, token) {
					matched = id
					break
				}
			}
		}
		if matched != "" && !seen[matched] {
			seen[matched] = true
			mentions = append(mentions, matched)
		}
	}
	return mentions
}

// FollowAgent makes follower follow target. Both relation sets update
// symmetrically; the target gets a notification and everyone sees a
// broadcast. Self-follows and duplicate follows return false.
func (s *Session) FollowAgent(followerID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if followerID == targetID {
		return false
	}
	follower, ok := s.agents[followerID]
	if !ok {
		return false
	}
	target, ok := s.agents[targetID]
	if !ok {
		return false
	}
	if follower.Following[targetID] {
		return false
	}

	follower.Following[targetID] = true
	target.Followers[followerID] = true

	s.deliverLocked(&Message{
		Type:    MsgFollow,
		To:      targetID,
		From:    followerID,
		Content: follower.DisplayName + " is now following you",
	})
	s.bus.Publish(Event{Type: EventAgentFollowed, Payload: map[string]any{
		"follower": followerID,
		"target":   targetID,
	}})
	return true
}

// UnfollowAgent removes the follow edge. Returns false if it was absent.
func (s *Session) UnfollowAgent(followerID, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	follower, ok := s.agents[followerID]
	if !ok {
		return false
	}
	target, ok := s.agents[targetID]
	if !ok {
		return false
	}
	if !follower.Following[targetID] {
		return false
	}

	delete(follower.Following, targetID)
	delete(target.Followers, followerID)

	s.bus.Publish(Event{Type: EventAgentUnfollowed, Payload: map[string]any{
		"follower": followerID,
		"target":   targetID,
	}})
	return true
}

// ReactToPost toggles an agent's reaction on a post: the same reaction
// twice clears it, a different reaction replaces it. Like/dislike counts
// are recomputed from the full reaction map after every change so they can
// never drift.
func (s *Session) ReactToPost(postID, agentID string, reaction Reaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reaction != ReactionLike && reaction != ReactionDislike {
		return false
	}
	if _, ok := s.agents[agentID]; !ok {
		return false
	}
	post, ok := s.postIndex[postID]
	if !ok {
		return false
	}

	if post.Reactions[agentID] == reaction {
		delete(post.Reactions, agentID)
	} else {
		post.Reactions[agentID] = reaction
	}

	post.Likes, post.Dislikes = 0, 0
	for _, r := range post.Reactions {
		switch r {
		case ReactionLike:
			post.Likes++
		case ReactionDislike:
			post.Dislikes++
		}
	}

	s.bus.Publish(Event{Type: EventPostReaction, Payload: map[string]any{
		"post_id":  postID,
		"agent":    agentID,
		"likes":    post.Likes,
		"dislikes": post.Dislikes,
	}})
	return true
}
