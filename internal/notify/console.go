package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mhutchins/arbmon/internal/arb"
)

// ConsoleSink prints alerts to a writer, stdout by default.
type ConsoleSink struct {
	out io.Writer
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) Send(ctx context.Context, opp *arb.Opportunity) error {
	divider := "============================================================"
	_, err := fmt.Fprintf(s.out, "\n%s\n%s\n%s\n\n", divider, FormatMessage(opp), divider)
	return err
}

func (s *ConsoleSink) Name() string {
	return "console"
}
