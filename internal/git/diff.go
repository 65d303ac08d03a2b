package git

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/bf2/archbot/internal/forge"
)

// ParseDiff splits a multi-file git diff into the per-file form the forge
// reports: the path, its status and the hunk text without file headers.
// Binary files carry no patch.
func ParseDiff(raw string) ([]forge.ChangedFile, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	out := make([]forge.ChangedFile, 0, len(files))
	for _, f := range files {
		cf := forge.ChangedFile{Path: f.NewName, Status: forge.FileModified}
		switch {
		case f.IsNew:
			cf.Status = forge.FileAdded
		case f.IsDelete:
			cf.Path = f.OldName
			cf.Status = forge.FileRemoved
		case f.IsRename:
			cf.PreviousPath = f.OldName
			cf.Status = forge.FileRenamed
		}
		if !f.IsBinary {
			cf.Patch = renderFragments(f.TextFragments)
		}
		out = append(out, cf)
	}
	return out, nil
}

func renderFragments(frags []*gitdiff.TextFragment) string {
	var sb strings.Builder
	for _, frag := range frags {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@", frag.OldPosition, frag.OldLines, frag.NewPosition, frag.NewLines)
		if frag.Comment != "" {
			sb.WriteString(" " + frag.Comment)
		}
		sb.WriteByte('\n')

		for _, l := range frag.Lines {
			switch l.Op {
			case gitdiff.OpAdd:
				sb.WriteByte('+')
			case gitdiff.OpDelete:
				sb.WriteByte('-')
			default:
				sb.WriteByte(' ')
			}
			sb.WriteString(l.Line)
			if !strings.HasSuffix(l.Line, "\n") {
				sb.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
