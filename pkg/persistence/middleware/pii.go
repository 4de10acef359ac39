package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/blueprint/pkg/ports"
)

// MaskedValue replaces every value whose key matches a PII pattern.
const MaskedValue = "***"

type piiMiddleware struct {
	ports.Gateway
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks node field and blueprint metadata values whose keys
// match one of the patterns before they are written.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.Gateway) ports.Gateway {
		return &piiMiddleware{Gateway: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	// The engine keeps its own copy; mask a clone.
	req.Graph = req.Graph.Clone()
	for i := range req.Graph.Nodes {
		maskMap(req.Graph.Nodes[i].Data.Fields, m.patterns)
	}
	if req.Metadata != nil {
		req.Metadata = deepCopyMap(req.Metadata)
		maskMap(req.Metadata, m.patterns)
	}
	return m.Gateway.UpsertGraph(ctx, req)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = MaskedValue
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
