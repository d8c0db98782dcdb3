package models

import "strings"

// ClientLabel prefixes caller utterances in a transcript.
const ClientLabel = "CLIENT"

// Transcript is an append-only sequence of labelled utterances.
type Transcript struct {
	b     strings.Builder
	lines int
}

// AppendClient adds "CLIENT: <text>\n". Blank text is ignored and reported
// as false.
func (t *Transcript) AppendClient(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	t.b.WriteString(ClientLabel)
	t.b.WriteString(": ")
	t.b.WriteString(text)
	t.b.WriteByte('\n')
	t.lines++
	return true
}

func (t *Transcript) String() string { return t.b.String() }

func (t *Transcript) Lines() int { return t.lines }

func (t *Transcript) Empty() bool { return t.lines == 0 }
