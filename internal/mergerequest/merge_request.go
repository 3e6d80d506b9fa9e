package mergerequest

import (
	"encoding/json"
	"fmt"
)

// NoJiraReference is shown in place of a JIRA link when the description
// has no ticket.
const NoJiraReference = "No JIRA reference found"

// MergeRequest is everything the report needs to know about one merge
// request for one user. It is built once per polling cycle and never
// modified afterwards.
type MergeRequest struct {
	Metadata

	User             string
	JiraTicketNumber string

	// Threads holds only the open threads relevant to User, in GitLab order.
	Threads []Thread

	NumberOfOpenThreads                 int
	NumberOfOpenThreadsForUser          int
	NumberOfOpenThreadsNeedingUserReply int

	// AllLastMessageIDs has the id of the last note of every thread in
	// Threads.
	AllLastMessageIDs []NoteID

	reactions *Reactions
}

// New classifies the threads of a merge request for user.
func New(threads []Thread, reactions []Reaction, metadata Metadata, user string) *MergeRequest {
	mr := &MergeRequest{
		Metadata:         metadata,
		User:             user,
		JiraTicketNumber: ExtractTicket(metadata.Description),
		reactions:        NewReactions(reactions),
	}
	for _, thread := range threads {
		if len(thread.Notes) == 0 || !thread.Resolvable() || thread.Resolved() {
			continue
		}
		mr.NumberOfOpenThreads++
		if !thread.IsRelevantTo(mr.Author.Username, user) {
			continue
		}
		mr.Threads = append(mr.Threads, thread)
		mr.NumberOfOpenThreadsForUser++
		mr.AllLastMessageIDs = append(mr.AllLastMessageIDs, thread.Last().ID)
		if thread.NeedsReply(user) {
			mr.NumberOfOpenThreadsNeedingUserReply++
		}
	}
	return mr
}

// NewFromRaw validates the raw GitLab payloads for one merge request and
// builds it. threads must be a JSON array, reactions an array or null and
// metadata an object; anything else is a *MalformedDataError.
func NewFromRaw(threads, reactions, metadata json.RawMessage, user string) (*MergeRequest, error) {
	meta, err := ParseMetadata(metadata)
	if err != nil {
		return nil, err
	}
	parsedThreads, err := ParseThreads(threads)
	if err != nil {
		return nil, fmt.Errorf("merge request !%d: %w", meta.IID, err)
	}
	parsedReactions, err := ParseReactions(reactions)
	if err != nil {
		return nil, fmt.Errorf("merge request !%d: %w", meta.IID, err)
	}
	return New(parsedThreads, parsedReactions, meta, user), nil
}

// IsAuthor reports whether the configured user opened the merge request.
func (mr *MergeRequest) IsAuthor() bool { return mr.Author.Username == mr.User }

// Reactions exposes the award emoji indexes.
func (mr *MergeRequest) Reactions() *Reactions { return mr.reactions }

// ReactionAndName maps emoji name to reacting display names.
func (mr *MergeRequest) ReactionAndName() map[string][]string { return mr.reactions.ByName() }

// ReactionAndGitLabUser maps emoji name to reacting usernames.
func (mr *MergeRequest) ReactionAndGitLabUser() map[string][]string {
	return mr.reactions.ByUsername()
}

// Reactors is Reactions().Reactors().
func (mr *MergeRequest) Reactors() string { return mr.reactions.Reactors() }

// Upvoters is Reactions().Upvoters().
func (mr *MergeRequest) Upvoters() string { return mr.reactions.Upvoters() }

// UserReactedWithoutUpvoting reports whether the user reacted on the merge
// request but didn't give it a thumbs up.
func (mr *MergeRequest) UserReactedWithoutUpvoting() bool {
	return mr.reactions.ReactedWithoutUpvoting(mr.User)
}

// UserIsReviewer is false only for a user who reacted without upvoting on
// somebody else's merge request; every other user counts as a reviewer.
func (mr *MergeRequest) UserIsReviewer() bool {
	return !(mr.UserReactedWithoutUpvoting() && !mr.IsAuthor())
}

// JiraLink joins the ticket onto the JIRA base URL, or returns
// NoJiraReference.
func (mr *MergeRequest) JiraLink(jiraBaseURL string) string {
	if mr.JiraTicketNumber == "" {
		return NoJiraReference
	}
	return jiraBaseURL + "/" + mr.JiraTicketNumber
}
