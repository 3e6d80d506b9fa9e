package review

import (
	"strconv"
	"time"
)

// Config holds the review service configuration
type Config struct {
	User       string
	ProjectIDs []int

	// IgnoredMRs lists merge request iids, as strings, that are never shown.
	IgnoredMRs []string

	// ShowAllDiscussions also prints merge requests where the user has
	// nothing to answer.
	ShowAllDiscussions bool
	// HideRepliedDiscussions skips threads where the user had the last word.
	HideRepliedDiscussions bool

	Notify          bool
	RefreshInterval time.Duration
}

func (c Config) ignored(iid int) bool {
	s := strconv.Itoa(iid)
	for _, id := range c.IgnoredMRs {
		if id == s {
			return true
		}
	}
	return false
}
