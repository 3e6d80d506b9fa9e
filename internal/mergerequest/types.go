package mergerequest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NoteID is GitLab's note identifier. GitLab sends it as a number but it is
// treated as an opaque string everywhere, including the seen-message file.
type NoteID string

func (id *NoteID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("note id is missing")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("note id %s is neither a string nor a number", data)
	}
	*id = NoteID(n.String())
	return nil
}

// User is the author of a note or reaction.
type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Note is a single message in a discussion thread.
type Note struct {
	ID        NoteID
	Author    User
	Body      string
	UpdatedAt string

	// Resolvable is true when GitLab sent a "resolved" key for the note.
	// Only the first note of a thread carries meaningful resolution state.
	Resolvable bool
	Resolved   bool
}

// Thread is a GitLab discussion: an ordered, non-empty list of notes.
type Thread struct {
	ID    string
	Notes []Note
}

// First returns the note that carries the thread's resolution state.
func (t Thread) First() Note { return t.Notes[0] }

// Last returns the most recent note of the thread.
func (t Thread) Last() Note { return t.Notes[len(t.Notes)-1] }

// Resolvable reports whether the thread can be resolved at all. Plain
// comments and system notes can't and never take part in the counters.
func (t Thread) Resolvable() bool { return t.First().Resolvable }

// Resolved reports whether a resolvable thread has been resolved.
func (t Thread) Resolved() bool { return t.First().Resolved }

// Reaction is an award emoji left on a merge request.
type Reaction struct {
	Name string
	User User
}

// Metadata is the subset of GitLab's merge request payload the report uses.
type Metadata struct {
	IID          int
	ProjectID    int
	Title        string
	Author       User
	WebURL       string
	Upvotes      int
	CreatedAt    string
	SourceBranch string
	Description  string
}
