package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Command
		wantOK bool
	}{
		{name: "blank", line: "   ", wantOK: false},
		{
			name:   "bare command",
			line:   "help",
			want:   Command{Name: "help", Args: []string{}, Line: "help"},
			wantOK: true,
		},
		{
			name: "lowercases name only",
			line: "  SSH Alice@10.0.0.5 -p 2222 ",
			want: Command{
				Name: "ssh",
				Args: []string{"Alice@10.0.0.5", "-p", "2222"},
				Raw:  "Alice@10.0.0.5 -p 2222",
				Line: "SSH Alice@10.0.0.5 -p 2222",
			},
			wantOK: true,
		},
		{
			name: "raw keeps inner spacing",
			line: "ssh-exec echo  'a   b'",
			want: Command{
				Name: "ssh-exec",
				Args: []string{"echo", "'a", "b'"},
				Raw:  "echo  'a   b'",
				Line: "ssh-exec echo  'a   b'",
			},
			wantOK: true,
		},
		{
			name: "tabs separate tokens",
			line: "sftp-get\treport.txt\tlocal.txt",
			want: Command{
				Name: "sftp-get",
				Args: []string{"report.txt", "local.txt"},
				Raw:  "report.txt\tlocal.txt",
				Line: "sftp-get\treport.txt\tlocal.txt",
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCommand_Arg(t *testing.T) {
	cmd, _ := Parse("sftp-put a b")
	assert.Equal(t, "a", cmd.Arg(0))
	assert.Equal(t, "b", cmd.Arg(1))
	assert.Equal(t, "", cmd.Arg(2))
	assert.Equal(t, "", cmd.Arg(-1))
}
