package mergerequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTicket(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        string
	}{
		{
			name:        "markdown link",
			description: "Change functions\nto static methods.\n\nJIRA: [ARTXXX-1000](https://jira.example.com/browse/ARTXXX-1000)",
			want:        "ARTXXX-1000",
		},
		{
			name:        "plain reference",
			description: "Some change\n\nJIRA: ABCD-1234",
			want:        "ABCD-1234",
		},
		{
			name:        "case insensitive",
			description: "Closes jira: abcd-1",
			want:        "abcd-1",
		},
		{
			name:        "trailing blank lines",
			description: "Heading\n\nJIRA: ABCD-1234\n\n",
			want:        "ABCD-1234",
		},
		{
			name:        "windows line endings",
			description: "Heading\r\n\r\nJIRA: ABCD-1234\r\n",
			want:        "ABCD-1234",
		},
		{
			name:        "reference not on the last line",
			description: "JIRA: XYZ-1\n\nOther text",
			want:        "",
		},
		{
			name:        "no reference",
			description: "Just a description",
			want:        "",
		},
		{
			name:        "empty description",
			description: "",
			want:        "",
		},
		{
			name:        "colon without space",
			description: "JIRA:ABCD-1",
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTicket(tt.description))
		})
	}
}

func TestExtractTicketLinkAndPlainAgree(t *testing.T) {
	linked := ExtractTicket("body\nJIRA: [ABCD-1234](http://x)")
	plain := ExtractTicket("body\nJIRA: ABCD-1234")

	assert.Equal(t, "ABCD-1234", linked)
	assert.Equal(t, linked, plain)
	assert.Equal(t, linked, ExtractTicket("JIRA: "+linked))
}
