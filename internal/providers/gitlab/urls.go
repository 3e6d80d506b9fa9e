package gitlab

import (
	"fmt"
	"time"
)

const perPage = 500

// createdAfterLayout matches what the merge request list endpoint accepts.
const createdAfterLayout = "2006-01-02T15:04:05Z"

func mergeRequestsURL(baseURL string, projectID int, createdAfter time.Time) string {
	u := fmt.Sprintf("%s/projects/%d/merge_requests?state=opened&per_page=%d", baseURL, projectID, perPage)
	if !createdAfter.IsZero() {
		u += "&created_after=" + createdAfter.UTC().Format(createdAfterLayout)
	}
	return u
}

func discussionsURL(baseURL string, projectID, iid int) string {
	return fmt.Sprintf("%s/projects/%d/merge_requests/%d/discussions?per_page=%d", baseURL, projectID, iid, perPage)
}

func awardEmojiURL(baseURL string, projectID, iid int) string {
	return fmt.Sprintf("%s/projects/%d/merge_requests/%d/award_emoji?per_page=%d", baseURL, projectID, iid, perPage)
}

// CreatedAfter returns the cutoff used in fast mode: now minus the given
// number of weeks. Zero weeks disables the cutoff.
func CreatedAfter(now time.Time, weeks int) time.Time {
	if weeks <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -7*weeks)
}
