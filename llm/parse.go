package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rustyeddy/aitrader/decision"
	"github.com/rustyeddy/aitrader/ledger"
)

type toolSpec struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type toolReply struct {
	Reasoning string    `json:"reasoning,omitempty"`
	Tool      *toolSpec `json:"tool,omitempty"`
}

type rawReply struct {
	Reasoning string `json:"reasoning"`
	Tool      *struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"tool"`
	Action *struct {
		Kind      string  `json:"kind"`
		Symbol    string  `json:"symbol"`
		Quantity  float64 `json:"quantity"`
		Price     float64 `json:"price"`
		Rationale string  `json:"rationale"`
	} `json:"action"`
}

// ParseReply turns a model reply into a proposal. A reply that is not a
// usable JSON object becomes an empty proposal carrying the reason, so the
// step is spent and the day goes on.
func ParseReply(content string) decision.Proposal {
	obj := extractJSON(content)
	if obj == "" {
		return decision.Proposal{Reasoning: "unparseable reply: " + truncate(content, 200)}
	}

	var r rawReply
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return decision.Proposal{Reasoning: fmt.Sprintf("unparseable reply: %v", err)}
	}

	switch {
	case r.Action != nil:
		kind, err := ledger.ParseKind(r.Action.Kind)
		if err != nil {
			return decision.Proposal{Reasoning: r.Reasoning + " (" + err.Error() + ")"}
		}
		rationale := r.Action.Rationale
		if rationale == "" {
			rationale = r.Reasoning
		}
		return decision.Proposal{
			Action: &ledger.Action{
				Kind:      kind,
				Symbol:    strings.ToUpper(strings.TrimSpace(r.Action.Symbol)),
				Quantity:  r.Action.Quantity,
				Price:     r.Action.Price,
				Rationale: rationale,
			},
			Reasoning: r.Reasoning,
		}

	case r.Tool != nil && r.Tool.Name != "":
		args := make(map[string]string, len(r.Tool.Arguments))
		for k, v := range r.Tool.Arguments {
			args[k] = stringify(v)
		}
		return decision.Proposal{
			ToolCall:  &decision.ToolCall{Tool: r.Tool.Name, Arguments: args},
			Reasoning: r.Reasoning,
		}
	}
	return decision.Proposal{Reasoning: r.Reasoning}
}

// extractJSON returns the outermost JSON object in s, tolerating markdown
// fences and surrounding prose.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
