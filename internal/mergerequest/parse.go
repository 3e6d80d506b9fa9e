package mergerequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type jsonKind int

const (
	kindOther jsonKind = iota
	kindNull
	kindArray
	kindObject
)

func kindOf(raw json.RawMessage) jsonKind {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return kindNull
	case raw[0] == '[':
		return kindArray
	case raw[0] == '{':
		return kindObject
	default:
		return kindOther
	}
}

type fields map[string]json.RawMessage

func decodeObject(what string, raw json.RawMessage) (fields, error) {
	if kindOf(raw) != kindObject {
		return nil, malformed(what, errors.New("expected a JSON object"))
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, malformed(what, err)
	}
	return f, nil
}

func decodeArray(what string, raw json.RawMessage) ([]json.RawMessage, error) {
	if kindOf(raw) != kindArray {
		return nil, malformed(what, errors.New("expected a JSON array"))
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed(what, err)
	}
	return items, nil
}

// required decodes key into dst, failing when the key is absent or null.
func (f fields) required(what, key string, dst any) error {
	v, ok := f[key]
	if !ok || kindOf(v) == kindNull {
		return malformed(what, fmt.Errorf("missing %q", key))
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return malformed(what, fmt.Errorf("field %q: %w", key, err))
	}
	return nil
}

// optional decodes key into dst when it is present and not null.
func (f fields) optional(what, key string, dst any) error {
	v, ok := f[key]
	if !ok || kindOf(v) == kindNull {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return malformed(what, fmt.Errorf("field %q: %w", key, err))
	}
	return nil
}

func decodeUser(what string, raw json.RawMessage) (User, error) {
	f, err := decodeObject(what, raw)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := f.required(what, "username", &u.Username); err != nil {
		return User{}, err
	}
	if err := f.optional(what, "name", &u.Name); err != nil {
		return User{}, err
	}
	return u, nil
}

func decodeNote(raw json.RawMessage) (Note, error) {
	f, err := decodeObject("note", raw)
	if err != nil {
		return Note{}, err
	}
	var n Note
	if err := f.required("note", "id", &n.ID); err != nil {
		return Note{}, err
	}
	author, ok := f["author"]
	if !ok {
		return Note{}, malformed("note", errors.New(`missing "author"`))
	}
	if n.Author, err = decodeUser("note author", author); err != nil {
		return Note{}, err
	}
	if err := f.required("note", "body", &n.Body); err != nil {
		return Note{}, err
	}
	if err := f.optional("note", "updated_at", &n.UpdatedAt); err != nil {
		return Note{}, err
	}
	// GitLab only sends "resolved" on resolvable notes, so presence of the
	// key is what marks a thread as resolvable. A null value means open.
	if _, ok := f["resolved"]; ok {
		n.Resolvable = true
		if err := f.optional("note", "resolved", &n.Resolved); err != nil {
			return Note{}, err
		}
	}
	return n, nil
}

// ParseThreads validates a discussions payload. Threads without notes are
// dropped so every returned Thread has at least one note.
func ParseThreads(raw json.RawMessage) ([]Thread, error) {
	items, err := decodeArray("discussions", raw)
	if err != nil {
		return nil, err
	}
	threads := make([]Thread, 0, len(items))
	for _, item := range items {
		f, err := decodeObject("discussion", item)
		if err != nil {
			return nil, err
		}
		var t Thread
		if err := f.optional("discussion", "id", &t.ID); err != nil {
			return nil, err
		}
		notesRaw, ok := f["notes"]
		if !ok {
			return nil, malformed("discussion", errors.New(`missing "notes"`))
		}
		notes, err := decodeArray("discussion notes", notesRaw)
		if err != nil {
			return nil, err
		}
		if len(notes) == 0 {
			continue
		}
		t.Notes = make([]Note, 0, len(notes))
		for _, nr := range notes {
			n, err := decodeNote(nr)
			if err != nil {
				return nil, err
			}
			t.Notes = append(t.Notes, n)
		}
		threads = append(threads, t)
	}
	return threads, nil
}

// ParseReactions validates an award emoji payload. A null payload is an
// empty list.
func ParseReactions(raw json.RawMessage) ([]Reaction, error) {
	if kindOf(raw) == kindNull {
		return nil, nil
	}
	items, err := decodeArray("award emoji", raw)
	if err != nil {
		return nil, err
	}
	reactions := make([]Reaction, 0, len(items))
	for _, item := range items {
		f, err := decodeObject("award emoji", item)
		if err != nil {
			return nil, err
		}
		var r Reaction
		if err := f.required("award emoji", "name", &r.Name); err != nil {
			return nil, err
		}
		user, ok := f["user"]
		if !ok {
			return nil, malformed("award emoji", errors.New(`missing "user"`))
		}
		if r.User, err = decodeUser("award emoji user", user); err != nil {
			return nil, err
		}
		reactions = append(reactions, r)
	}
	return reactions, nil
}

// ParseMetadata validates a single merge request object from the merge
// request listing.
func ParseMetadata(raw json.RawMessage) (Metadata, error) {
	const what = "merge request"
	f, err := decodeObject(what, raw)
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	for _, field := range []struct {
		key string
		dst any
	}{
		{"iid", &m.IID},
		{"project_id", &m.ProjectID},
		{"title", &m.Title},
		{"web_url", &m.WebURL},
	} {
		if err := f.required(what, field.key, field.dst); err != nil {
			return Metadata{}, err
		}
	}
	author, ok := f["author"]
	if !ok {
		return Metadata{}, malformed(what, errors.New(`missing "author"`))
	}
	if m.Author, err = decodeUser("merge request author", author); err != nil {
		return Metadata{}, err
	}
	for _, field := range []struct {
		key string
		dst any
	}{
		{"upvotes", &m.Upvotes},
		{"created_at", &m.CreatedAt},
		{"source_branch", &m.SourceBranch},
		{"description", &m.Description},
	} {
		if err := f.optional(what, field.key, field.dst); err != nil {
			return Metadata{}, err
		}
	}
	return m, nil
}
