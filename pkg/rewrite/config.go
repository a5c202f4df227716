// Package rewrite converts value-semantics uses of one target type into
// reference semantics: ref locals, ref re-assignment and folded null checks.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/tileref/pkg/syntax"
)

// ErrInvalidConfig is returned by New for unusable configurations.
var ErrInvalidConfig = errors.New("rewrite: invalid config")

const (
	DefaultTargetType     = "Terraria.Tile"
	DefaultSentinelMember = "Dummy"
	DefaultReviewMarker   = "TILEREF: two-index assignment needs manual review"
)

type Config struct {
	// TargetType is the fully-qualified name of the type to convert.
	TargetType string `json:"target_type"`
	// SentinelMember is the static member of the target type that unbound
	// ref locals are bound to.
	SentinelMember string `json:"sentinel_member"`
	// ReviewMarker is written next to statements disabled for manual review.
	ReviewMarker string `json:"review_marker"`
}

func DefaultConfig() Config {
	return Config{
		TargetType:     DefaultTargetType,
		SentinelMember: DefaultSentinelMember,
		ReviewMarker:   DefaultReviewMarker,
	}
}

// Oracle answers type questions for the nodes of one file.
type Oracle interface {
	// TypeOf returns the fully-qualified static type of an expression.
	TypeOf(n *syntax.Node) (string, bool)
	// SymbolOf returns the fully-qualified type a piece of type syntax names.
	SymbolOf(n *syntax.Node) (string, bool)
}

// Rewriter applies the rule set. It holds no per-file state and may be
// shared across goroutines.
type Rewriter struct {
	cfg Config
}

func New(cfg Config) (*Rewriter, error) {
	for _, part := range strings.Split(cfg.TargetType, ".") {
		if !isIdentifier(part) {
			return nil, fmt.Errorf("%w: target type %q is not a dotted name", ErrInvalidConfig, cfg.TargetType)
		}
	}
	if !isIdentifier(cfg.SentinelMember) {
		return nil, fmt.Errorf("%w: sentinel member %q is not an identifier", ErrInvalidConfig, cfg.SentinelMember)
	}
	if cfg.ReviewMarker == "" {
		cfg.ReviewMarker = DefaultReviewMarker
	}
	if strings.Contains(cfg.ReviewMarker, "*/") || strings.ContainsAny(cfg.ReviewMarker, "\r\n") {
		return nil, fmt.Errorf("%w: review marker must be a single line without */", ErrInvalidConfig)
	}
	return &Rewriter{cfg: cfg}, nil
}

func (r *Rewriter) Config() Config {
	return r.cfg
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
