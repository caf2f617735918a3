package service

import (
	"context"
	"fmt"
	"strings"
)

// SequenceReader yields the highest numeric suffix already used for a prefix.
type SequenceReader interface {
	MaxSubmissionSequence(ctx context.Context, prefix string) (int, error)
}

// CodeGenerator allocates human-readable submission codes such as SUB-000042.
type CodeGenerator struct {
	prefix string
	width  int
}

// NewCodeGenerator builds a generator; width falls back to six digits.
func NewCodeGenerator(prefix string, width int) *CodeGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "SUB"
	}
	if width <= 0 {
		width = 6
	}
	return &CodeGenerator{prefix: prefix, width: width}
}

// Prefix returns the configured code prefix.
func (g *CodeGenerator) Prefix() string {
	return g.prefix
}

// Next reads the current maximum through reader, which must be the
// transaction that will insert the code.
func (g *CodeGenerator) Next(ctx context.Context, reader SequenceReader) (string, error) {
	max, err := reader.MaxSubmissionSequence(ctx, g.prefix)
	if err != nil {
		return "", err
	}
	return FormatCode(g.prefix, max+1, g.width), nil
}

// FormatCode zero-pads seq to width. Sequences wider than width are kept whole.
func FormatCode(prefix string, seq, width int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, seq)
}
