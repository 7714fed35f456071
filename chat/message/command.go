package message

import "strings"

// CommandMsg is a parsed input line: a command name followed by positional
// arguments. Fields are not unescaped, a literal Delimiter always splits.
type CommandMsg struct {
	body   string
	fields []string
}

// ParseInput splits a line into its command and arguments. The line is taken
// as is; carriage returns are the Framer's concern.
func ParseInput(line string) *CommandMsg {
	return &CommandMsg{
		body:   line,
		fields: strings.Split(line, Delimiter),
	}
}

// Command returns the command name, field 0.
func (m CommandMsg) Command() string {
	return m.fields[0]
}

// Arg returns the i-th argument (field i+1), or an empty string when the line
// has fewer fields.
func (m CommandMsg) Arg(i int) string {
	if i < 0 || i+1 >= len(m.fields) {
		return ""
	}
	return m.fields[i+1]
}

// Args returns every argument after the command.
func (m CommandMsg) Args() []string {
	return m.fields[1:]
}

// Rest returns argument i and everything after it, rejoined with Delimiter.
func (m CommandMsg) Rest(i int) string {
	if i < 0 || i+1 >= len(m.fields) {
		return ""
	}
	return strings.Join(m.fields[i+1:], Delimiter)
}

// IsEmpty is true for blank lines, which are ignored.
func (m CommandMsg) IsEmpty() bool {
	return m.body == ""
}

func (m CommandMsg) String() string {
	return m.body
}
