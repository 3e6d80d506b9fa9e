package mergerequest

import (
	"regexp"
	"strings"
)

var (
	jiraPattern    = regexp.MustCompile(`(?i)^.*JIRA: (.*)(\\n)*`)
	markdownLinkRe = regexp.MustCompile(`^\[(.*)\].*`)
)

// ExtractTicket returns the JIRA reference found on the last non-empty line
// of a merge request description, or "" when there is none.
//
// Only that one line is inspected: a "JIRA: ABC-1" line followed by any other
// text is not found. A reference already written as a markdown link
// ("JIRA: [ABC-1](https://...)") is reduced to the link text.
func ExtractTicket(description string) string {
	line := lastNonEmptyLine(description)
	if line == "" {
		return ""
	}
	m := jiraPattern.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	ticket := m[1]
	if link := markdownLinkRe.FindStringSubmatch(ticket); link != nil {
		ticket = link[1]
	}
	return ticket
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimRight(lines[i], "\r")
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
