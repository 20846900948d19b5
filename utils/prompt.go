package utils

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"canvascli/internal"
)

// TerminalSelector implements the Selector interface with a numbered menu on
// the terminal. Options are presented in the order received; server-provided
// ordering is preserved, never re-sorted here. The reader and writer are
// injectable so tests can script the interaction.
type TerminalSelector struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalSelector creates a selector bound to the given streams
func NewTerminalSelector(in io.Reader, out io.Writer) *TerminalSelector {
	return &TerminalSelector{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// SelectOne presents the options and returns the index of the user's choice.
// Entering q aborts with UserCancelled; an empty option list fails with
// EmptySelection before anything is printed.
func (s *TerminalSelector) SelectOne(prompt string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, internal.NewEmptySelectionError(prompt)
	}

	s.printMenu(prompt, options)

	for {
		fmt.Fprintf(s.out, "Choose 1-%d (q to cancel): ", len(options))

		line, err := s.readLine()
		if err != nil {
			return 0, err
		}

		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(options) {
			fmt.Fprintf(s.out, "Invalid choice: %s\n", line)
			continue
		}

		return choice - 1, nil
	}
}

// SelectMany presents the options and returns the chosen indices. Accepts
// comma lists ("1,3"), ranges ("2-5"), and "all".
func (s *TerminalSelector) SelectMany(prompt string, options []string) ([]int, error) {
	if len(options) == 0 {
		return nil, internal.NewEmptySelectionError(prompt)
	}

	s.printMenu(prompt, options)

	for {
		fmt.Fprintf(s.out, "Choose 1-%d, e.g. 1,3 or 2-5 or all (q to cancel): ", len(options))

		line, err := s.readLine()
		if err != nil {
			return nil, err
		}

		indices, err := parseMultiChoice(line, len(options))
		if err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			continue
		}

		return indices, nil
	}
}

func (s *TerminalSelector) printMenu(prompt string, options []string) {
	fmt.Fprintf(s.out, "%s\n", prompt)
	for i, option := range options {
		fmt.Fprintf(s.out, "  %2d) %s\n", i+1, option)
	}
}

// readLine reads one trimmed input line; EOF or q maps to UserCancelled
func (s *TerminalSelector) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return "", internal.NewUserCancelledError()
	}

	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "q") {
		return "", internal.NewUserCancelledError()
	}

	return line, nil
}

// parseMultiChoice parses a multi-select expression into zero-based indices,
// deduplicated, in first-mention order.
func parseMultiChoice(input string, max int) ([]int, error) {
	if strings.EqualFold(input, "all") {
		indices := make([]int, max)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	seen := make(map[int]bool)
	var indices []int

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil || start < 1 || end > max || start > end {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			for i := start; i <= end; i++ {
				if !seen[i-1] {
					seen[i-1] = true
					indices = append(indices, i-1)
				}
			}
			continue
		}

		choice, err := strconv.Atoi(part)
		if err != nil || choice < 1 || choice > max {
			return nil, fmt.Errorf("invalid choice: %s", part)
		}
		if !seen[choice-1] {
			seen[choice-1] = true
			indices = append(indices, choice-1)
		}
	}

	if len(indices) == 0 {
		return nil, fmt.Errorf("nothing selected")
	}

	return indices, nil
}

// PromptLine asks a free-form question and returns the trimmed answer
func PromptLine(in io.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprintf(out, "%s ", question)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", internal.NewUserCancelledError()
	}
	return strings.TrimSpace(line), nil
}
