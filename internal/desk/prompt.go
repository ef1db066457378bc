package desk

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tutorias/attendance-desk/internal/pkg/navguard"
)

// linePrompter asks yes/no questions on the console's own input, so answers
// are read in order with the commands around them.
type linePrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

var _ navguard.Prompter = (*linePrompter)(nil)

func (p *linePrompter) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.out, "%s [y/N] ", message)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return false, err
		}
		return false, io.ErrUnexpectedEOF
	}

	switch strings.ToLower(strings.TrimSpace(p.in.Text())) {
	case "y", "yes", "s", "si", "sí":
		return true, nil
	}
	return false, nil
}
