package workflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAborted is returned when the operator cancels a run.
var ErrAborted = errors.New("run aborted by operator")

// Operator answers the questions a run needs a human for.
type Operator interface {
	// ChooseMode is asked only when the artwork has overlapping layers.
	ChooseMode(ctx context.Context, overlaps []string) (Mode, error)
	// TrapWidth returns the raw width answer; empty keeps suggested.
	TrapWidth(ctx context.Context, suggested int, resolution float64) (string, error)
}

// FlagOperator answers from preset values, for non-interactive runs.
type FlagOperator struct {
	Mode  Mode
	Width string
}

func (f FlagOperator) ChooseMode(context.Context, []string) (Mode, error) {
	if f.Mode == "" {
		return ModePlates, nil
	}
	return f.Mode, nil
}

func (f FlagOperator) TrapWidth(context.Context, int, float64) (string, error) {
	return f.Width, nil
}

// TerminalOperator prompts on a terminal. End of input aborts the run.
type TerminalOperator struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalOperator reads answers from in and writes prompts to out.
func NewTerminalOperator(in io.Reader, out io.Writer) *TerminalOperator {
	return &TerminalOperator{in: bufio.NewReader(in), out: out}
}

func (t *TerminalOperator) ChooseMode(ctx context.Context, overlaps []string) (Mode, error) {
	fmt.Fprintf(t.out, "Non-normal blend/transparency layers detected: %s\n", strings.Join(overlaps, ", "))
	fmt.Fprintln(t.out, "  [P] plates    auto-knockout (default)")
	fmt.Fprintln(t.out, "  [O] overprint keep intentional overlaps, trap outer boundary only")
	for {
		answer, err := t.ask(ctx, "Mode [P/o]: ")
		if err != nil {
			return "", err
		}
		switch strings.ToLower(answer) {
		case "", "p", "plates":
			return ModePlates, nil
		case "o", "overprint":
			return ModeOverprint, nil
		case "q", "quit":
			return "", ErrAborted
		}
		fmt.Fprintf(t.out, "Unrecognized answer %q.\n", answer)
	}
}

func (t *TerminalOperator) TrapWidth(ctx context.Context, suggested int, resolution float64) (string, error) {
	return t.ask(ctx, fmt.Sprintf("Trap width in pixels (baseline 5px @ 300 dpi, document %g dpi) [%d]: ", resolution, suggested))
}

func (t *TerminalOperator) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
