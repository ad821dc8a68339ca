package hackmd

import "strings"

// FormatNote forces the first line of content to "# title" and appends tag
// unless it already appears among the last three lines.
func FormatNote(title, content, tag string) string {
	body := strings.TrimLeft(content, " \t\r\n")
	lines := strings.Split(body, "\n")
	heading := "# " + title
	if body == "" || !strings.HasPrefix(strings.TrimSpace(lines[0]), "# ") {
		if body == "" {
			body = heading + "\n"
		} else {
			body = heading + "\n\n" + body
		}
	} else {
		lines[0] = heading
		body = strings.Join(lines, "\n")
	}

	tag = strings.TrimSpace(tag)
	if tag == "" {
		return body
	}
	body = strings.TrimRight(body, " \t\r\n")
	tail := strings.Split(body, "\n")
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	for _, line := range tail {
		if strings.TrimSpace(line) == tag {
			return body + "\n"
		}
	}
	return body + "\n\n" + tag + "\n"
}
