package mergerequest

import "strings"

// IsParticipant reports whether user wrote any note in the thread.
func (t Thread) IsParticipant(user string) bool {
	for _, n := range t.Notes {
		if n.Author.Username == user {
			return true
		}
	}
	return false
}

// IsMentioned reports whether any note contains "@user". This is a plain
// substring match, so "@alice2" also mentions "alice".
func (t Thread) IsMentioned(user string) bool {
	mention := "@" + user
	for _, n := range t.Notes {
		if strings.Contains(n.Body, mention) {
			return true
		}
	}
	return false
}

// IsAuthorAwaitingReply reports whether user authored the merge request and
// somebody else had the last word in the thread.
func (t Thread) IsAuthorAwaitingReply(mrAuthor, user string) bool {
	return mrAuthor == user && t.Last().Author.Username != user
}

// IsRelevantTo reports whether the thread is open and concerns user.
func (t Thread) IsRelevantTo(mrAuthor, user string) bool {
	if !t.Resolvable() || t.Resolved() {
		return false
	}
	return t.IsParticipant(user) || t.IsMentioned(user) || t.IsAuthorAwaitingReply(mrAuthor, user)
}

// NeedsReply reports whether somebody other than user wrote the last note.
func (t Thread) NeedsReply(user string) bool {
	return t.Last().Author.Username != user
}

// LastNoteBy returns the index of the last note written by user, or -1.
func (t Thread) LastNoteBy(user string) int {
	for i := len(t.Notes) - 1; i >= 0; i-- {
		if t.Notes[i].Author.Username == user {
			return i
		}
	}
	return -1
}

// RowHighlights marks the notes that are new to user: everything after
// user's own last note, or the whole thread when user never replied. When
// no reply is needed nothing is highlighted.
func (t Thread) RowHighlights(needsReply bool, user string) []bool {
	highlights := make([]bool, len(t.Notes))
	if !needsReply {
		return highlights
	}
	for i := t.LastNoteBy(user) + 1; i < len(highlights); i++ {
		highlights[i] = true
	}
	return highlights
}
