package vars

import (
	"strings"

	"github.com/ironbee-oss/rulecore/arena"
	rerrors "github.com/ironbee-oss/rulecore/errors"
	"github.com/ironbee-oss/rulecore/field"
)

// Expand is a parsed "%{NAME[:FILTER]}" template (§4.2 VarExpand): a
// sequence of literal-prefix/target pairs, evaluated left to right against
// a Store to produce one final string. The same structure doubles as a
// target's own filter (see Target.filterExpand), since a FILTER clause may
// itself contain %{...} references.
type Expand struct {
	chunks []expandChunk
}

type expandChunk struct {
	prefix string
	target *Target // nil for a trailing literal with no following %{...}
}

// ExpandTest reports whether s contains at least one well-formed %{...}
// reference, without actually parsing/resolving it. Used by rule-config
// loaders to decide whether a string argument needs to go through
// AcquireExpand at all, or can be used as a plain literal.
func ExpandTest(s string) bool {
	idx := strings.Index(s, "%{")
	if idx == -1 {
		return false
	}
	return strings.Contains(s[idx+2:], "}")
}

// AcquireExpand parses s against config, resolving every %{...} reference's
// NAME through config.Acquire(ar, NAME). A malformed trailing "%{" with no
// matching "}" is treated as a literal for the remainder of the string, not
// an error — mirroring how an unanchored template engine degrades rather
// than failing an entire rule load over one typo'd reference.
func AcquireExpand(config *Config, ar *arena.Arena, s string) (*Expand, error) {
	chunks, err := parseExpandChunks(config, ar, s)
	if err != nil {
		return nil, err
	}
	return &Expand{chunks: chunks}, nil
}

// findExpandClose scans rest (everything after an opening "%{") for the
// '}' that closes it, tracking %{...} nesting depth so a FILTER clause's
// own nested reference (§4.2: "FILTER ... may itself contain %{…}") doesn't
// terminate the outer reference early. Returns -1 if rest never closes.
func findExpandClose(rest string) int {
	depth := 0
	for i := 0; i < len(rest); i++ {
		switch {
		case rest[i] == '%' && i+1 < len(rest) && rest[i+1] == '{':
			depth++
			i++
		case rest[i] == '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

func parseExpandChunks(config *Config, ar *arena.Arena, s string) ([]expandChunk, error) {
	var chunks []expandChunk
	i := 0
	for i < len(s) {
		rel := strings.Index(s[i:], "%{")
		if rel == -1 {
			chunks = append(chunks, expandChunk{prefix: s[i:]})
			i = len(s)
			break
		}
		openAt := i + rel
		prefix := s[i:openAt]
		rest := s[openAt+2:]
		closeRel := findExpandClose(rest)
		if closeRel == -1 {
			chunks = append(chunks, expandChunk{prefix: s[i:]})
			i = len(s)
			break
		}
		targetStr := rest[:closeRel]
		target, err := parseTargetString(config, ar, targetStr)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, expandChunk{prefix: prefix, target: target})
		i = openAt + 2 + closeRel + 1
	}
	if len(chunks) == 0 {
		chunks = append(chunks, expandChunk{})
	}
	return chunks, nil
}

// AcquireTargetFromString parses a single target string "NAME[:FILTER]"
// (§6 Target string grammar), resolving NAME via config.Acquire(ar, NAME).
// If FILTER is present and non-empty it is itself parsed as an Expand (so
// it may reference other vars); a bare trailing colon ("NAME:") is a
// trivial target, equivalent to no filter at all rather than a filter that
// evaluates to the empty string.
func AcquireTargetFromString(config *Config, ar *arena.Arena, s string) (*Target, error) {
	return parseTargetString(config, ar, s)
}

func parseTargetString(config *Config, ar *arena.Arena, s string) (*Target, error) {
	colonIdx := strings.IndexByte(s, ':')

	var name, filterStr string
	hasFilter := false
	switch {
	case colonIdx == -1:
		name = s
	case colonIdx > 0:
		if _, registered := config.Lookup(s[:colonIdx]); registered {
			name = s[:colonIdx]
			filterStr = s[colonIdx+1:]
			hasFilter = filterStr != ""
		} else {
			// s[:colonIdx] isn't a known var, so the colon is part of a
			// dynamically-coined name (e.g. "TX:my_counter") rather than
			// a NAME:FILTER separator - acquire the whole string as one name.
			name = s
		}
	default:
		// colonIdx == 0: a leading bare colon never starts a coined name.
		name = s[:colonIdx]
		filterStr = s[colonIdx+1:]
		hasFilter = filterStr != ""
	}
	if name == "" {
		return nil, rerrors.EINVAL("VarTarget.AcquireFromString", "empty target name in: "+s)
	}

	source, err := config.Acquire(ar, name)
	if err != nil {
		return nil, err
	}

	if !hasFilter {
		return &Target{source: source}, nil
	}

	filterChunks, err := parseExpandChunks(config, ar, filterStr)
	if err != nil {
		return nil, err
	}
	return &Target{source: source, filterExpand: &Expand{chunks: filterChunks}}, nil
}

// Execute evaluates the expand against store, concatenating literal prefixes
// with the stringified result of each target's Get. A target that errors
// (e.g. ENOENT for an unset var) contributes the literal "ERROR" rather than
// aborting the whole expansion, so one missing var doesn't blank out an
// entire log-format string. An unfiltered list (static or dynamic) is
// flattened by Target.Get into its children, which are stringified and
// joined with ", "; any resolved field with no Stringify rendering (e.g. a
// time field, or a list nested inside the resolved list) contributes
// "UNSUPPORTED".
func (e *Expand) Execute(store *Store) (string, error) {
	var sb strings.Builder
	for _, c := range e.chunks {
		sb.WriteString(c.prefix)
		if c.target == nil {
			continue
		}
		fields, err := c.target.Get(store)
		if err != nil {
			sb.WriteString("ERROR")
			continue
		}
		sb.WriteString(stringifyFieldList(fields))
	}
	return sb.String(), nil
}

func stringifyFieldList(fields []*field.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if s, ok := f.Stringify(); ok {
			parts = append(parts, s)
		} else {
			parts = append(parts, "UNSUPPORTED")
		}
	}
	return strings.Join(parts, ", ")
}
