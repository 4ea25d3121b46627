package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SequenceSource hands out monotonically increasing numbers per key.
type SequenceSource interface {
	NextSequence(ctx context.Context, key string) (int64, error)
}

// CodeGenerator produces human-readable ticket codes.
type CodeGenerator interface {
	Next(ctx context.Context, tenantID string) string
}

// SequenceCodeGenerator issues <prefix>-<n> codes from a per-tenant sequence and falls back
// to a random code when the sequence is unavailable.
type SequenceCodeGenerator struct {
	sequences SequenceSource
	prefix    string
	logger    *zap.Logger
}

// NewSequenceCodeGenerator builds the generator. sequences may be nil.
func NewSequenceCodeGenerator(sequences SequenceSource, prefix string, logger *zap.Logger) *SequenceCodeGenerator {
	if prefix == "" {
		prefix = "TCK"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceCodeGenerator{sequences: sequences, prefix: prefix, logger: logger}
}

// Next returns the next code for tenantID. It never fails.
func (g *SequenceCodeGenerator) Next(ctx context.Context, tenantID string) string {
	if g.sequences != nil {
		n, err := g.sequences.NextSequence(ctx, "ticket_code_seq:"+tenantID)
		if err == nil {
			return fmt.Sprintf("%s-%d", g.prefix, n)
		}
		g.logger.Warn("ticket code sequence unavailable, using random code",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
	return generateTicketKey(g.prefix)
}

func generateTicketKey(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
