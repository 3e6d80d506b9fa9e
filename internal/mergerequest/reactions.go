package mergerequest

import (
	"slices"
	"strings"
)

// UpvoteReaction is the award emoji GitLab counts as an upvote.
const UpvoteReaction = "thumbsup"

const listSeparator = " | "

// Reactions indexes the award emoji on a merge request by emoji name. Every
// reaction is kept, so a user who reacted twice with the same emoji appears
// twice.
type Reactions struct {
	names     map[string][]string // emoji -> display names
	usernames map[string][]string // emoji -> usernames
}

// NewReactions builds the two indexes in a single pass.
func NewReactions(reactions []Reaction) *Reactions {
	r := &Reactions{
		names:     make(map[string][]string),
		usernames: make(map[string][]string),
	}
	for _, reaction := range reactions {
		r.names[reaction.Name] = append(r.names[reaction.Name], reaction.User.Name)
		r.usernames[reaction.Name] = append(r.usernames[reaction.Name], reaction.User.Username)
	}
	return r
}

// ByName maps emoji name to the display names of the people who used it.
func (r *Reactions) ByName() map[string][]string { return r.names }

// ByUsername maps emoji name to the usernames of the people who used it.
func (r *Reactions) ByUsername() map[string][]string { return r.usernames }

// Reactors lists everybody who left any reaction, sorted and de-duplicated.
// It returns "" when nobody reacted.
func (r *Reactions) Reactors() string {
	seen := make(map[string]struct{})
	var all []string
	for _, names := range r.names {
		for _, name := range names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			all = append(all, name)
		}
	}
	slices.Sort(all)
	return strings.Join(all, listSeparator)
}

// Upvoters lists the people who left a thumbs up, sorted.
func (r *Reactions) Upvoters() string {
	upvoters := slices.Clone(r.names[UpvoteReaction])
	slices.Sort(upvoters)
	return strings.Join(upvoters, listSeparator)
}

// ReactedWithoutUpvoting reports whether username left some reaction but
// no thumbs up.
func (r *Reactions) ReactedWithoutUpvoting(username string) bool {
	reacted := false
	for _, users := range r.usernames {
		if slices.Contains(users, username) {
			reacted = true
			break
		}
	}
	return reacted && !slices.Contains(r.usernames[UpvoteReaction], username)
}
