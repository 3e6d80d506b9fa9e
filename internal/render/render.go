// Package render prints the review report to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"

	"github.com/reviewcheck/internal/mergerequest"
)

// TimestampPlaceholder is printed when a GitLab timestamp can't be parsed.
const TimestampPlaceholder = "??"

const notReviewedMarker = "(not yet reviewed)"

// Options controls the layout of the report.
type Options struct {
	// Width of every panel and table. Zero means the terminal width.
	Width int
	// JiraURL is the base URL tickets are appended to. Empty hides the
	// Jira line.
	JiraURL string
}

// Renderer writes report components to w.
type Renderer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	width    int
	jiraURL  string
}

// New returns a Renderer writing to w. Colors are enabled only when w is a
// terminal.
func New(w io.Writer, opts Options) *Renderer {
	width := opts.Width
	if width <= 0 {
		width = TerminalWidth()
	}
	return &Renderer{
		w:        w,
		renderer: lipgloss.NewRenderer(w),
		width:    width,
		jiraURL:  strings.TrimSuffix(opts.JiraURL, "/"),
	}
}

// Clear wipes the screen before a refresh.
func (r *Renderer) Clear() {
	fmt.Fprint(r.w, "\x1b[H\x1b[2J")
}

// Banner prints the "Status as of" header.
func (r *Renderer) Banner(now time.Time) {
	style := r.renderer.NewStyle().
		Bold(true).
		Reverse(true).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		Width(r.width - 2)
	fmt.Fprintln(r.w, style.Render("Status as of "+now.Format("2006-01-02 15:04")))
}

// Title is the panel heading: title, iid, ticket and the reviewer marker.
func Title(mr *mergerequest.MergeRequest) string {
	parts := []string{mr.Title, fmt.Sprintf("!%d", mr.IID)}
	if mr.JiraTicketNumber != "" {
		parts = append(parts, mr.JiraTicketNumber)
	}
	title := strings.Join(parts, " | ")
	if !mr.UserIsReviewer() {
		title += " " + notReviewedMarker
	}
	return title
}

// Info is the body of the merge request panel.
func Info(mr *mergerequest.MergeRequest, jiraURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Upvotes: %d", mr.Upvotes)
	if mr.Upvotes > 0 {
		fmt.Fprintf(&b, "\nPeople who have upvoted: %s", mr.Upvoters())
	}
	if reactors := mr.Reactors(); reactors != "" {
		fmt.Fprintf(&b, "\nPeople who have reacted: %s", reactors)
	}
	fmt.Fprintf(&b, "\nOpen discussions: %d", mr.NumberOfOpenThreads)
	if mr.NumberOfOpenThreads > 0 {
		fmt.Fprintf(&b, "\nOpen discussions where you are involved: %d", mr.NumberOfOpenThreadsForUser)
		fmt.Fprintf(&b, "\nOpen discussions you need to respond (colored border): %d", mr.NumberOfOpenThreadsNeedingUserReply)
	}
	fmt.Fprintf(&b, "\n\nGitLab link:   %s", mr.WebURL)
	if jiraURL != "" {
		fmt.Fprintf(&b, "\nJira link:     %s", mr.JiraLink(jiraURL))
	}
	fmt.Fprintf(&b, "\nSource branch: %s", mr.SourceBranch)
	fmt.Fprintf(&b, "\nCreated at:    %s", timestamp(mr.CreatedAt))
	if mr.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", mr.Description)
	}
	return b.String()
}

// MergeRequest prints the info panel of mr.
func (r *Renderer) MergeRequest(mr *mergerequest.MergeRequest) {
	color := ColorFor(mr.IID)
	title := r.renderer.NewStyle().Bold(true).Foreground(color).Render(Title(mr))
	panel := r.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(r.width - 2)
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, panel.Render(title+"\n\n"+Info(mr, r.jiraURL)))
}

// Thread prints one discussion of mr as a Date/Author/Message table. When
// needsReply is set the border takes the merge request color, new notes are
// highlighted and a link to the discussion is appended.
func (r *Renderer) Thread(mr *mergerequest.MergeRequest, thread mergerequest.Thread, needsReply bool) {
	color := ColorFor(mr.IID)
	border := plainBorder
	if needsReply {
		border = color
	}
	highlights := thread.RowHighlights(needsReply, mr.User)

	header := r.renderer.NewStyle().Bold(true).Foreground(color)
	cell := r.renderer.NewStyle().Padding(0, 1)
	messageWidth := max(r.width-dateWidth-authorWidth-tableBorders, minMessageWidth)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.renderer.NewStyle().Foreground(border)).
		BorderRow(true).
		Headers("Date", "Author", "Message").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cell
			if row == table.HeaderRow {
				s = header.Padding(0, 1)
			} else if row < len(highlights) && highlights[row] {
				s = s.Bold(true).Foreground(highlightText)
			} else if col == 2 {
				s = s.Faint(true)
			}
			switch col {
			case 0:
				return s.Width(dateWidth)
			case 1:
				return s.Width(authorWidth)
			default:
				return s.Width(messageWidth)
			}
		})

	for _, note := range thread.Notes {
		t.Row(timestamp(note.UpdatedAt), note.Author.Name, note.Body)
	}
	if needsReply {
		t.Row("", "Discussion link", DiscussionLink(mr.WebURL, thread))
	}
	fmt.Fprintln(r.w, t.Render())
}

// DiscussionLink points at the first note of thread.
func DiscussionLink(webURL string, thread mergerequest.Thread) string {
	return fmt.Sprintf("%s#note_%s", webURL, thread.First().ID)
}

func timestamp(raw string) string {
	converted, err := mergerequest.ConvertTime(raw)
	if err != nil {
		log.Warn().Err(err).Msg("rendering placeholder timestamp")
		return TimestampPlaceholder
	}
	return converted
}
