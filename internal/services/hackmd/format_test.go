package hackmd

import "testing"

func TestFormatNote(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "adds heading",
			content: "\n\nSummary body",
			want:    "# Lecture 01\n\nSummary body\n\n#transcript\n",
		},
		{
			name:    "replaces heading",
			content: "# Old title\nbody",
			want:    "# Lecture 01\nbody\n\n#transcript\n",
		},
		{
			name:    "tag not duplicated",
			content: "# x\nbody\n\n#transcript\n",
			want:    "# Lecture 01\nbody\n\n#transcript\n",
		},
		{
			name:    "empty content",
			content: "",
			want:    "# Lecture 01\n\n#transcript\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNote("Lecture 01", tt.content, "#transcript"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
