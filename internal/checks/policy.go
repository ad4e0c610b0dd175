package checks

import (
	"fmt"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ---------------------------------------------------------------------------
// IAM-style policy documents
//
// Trust policies, permission policies and ECR repository policies share the
// same grammar. Several elements accept either a single value or a list, so
// the types below normalise both shapes on decode.
// ---------------------------------------------------------------------------

// policyDocument is a decoded IAM policy.
type policyDocument struct {
	Version   string        `json:"Version"`
	Statement statementList `json:"Statement"`
}

type statement struct {
	Sid       string                    `json:"Sid,omitempty"`
	Effect    string                    `json:"Effect"`
	Principal *principal                `json:"Principal,omitempty"`
	Action    stringList                `json:"Action,omitempty"`
	Resource  stringList                `json:"Resource,omitempty"`
	Condition map[string]map[string]any `json:"Condition,omitempty"`
}

func (s statement) allows() bool {
	return strings.EqualFold(s.Effect, "Allow")
}

// conditionKey reports whether any operator block of the statement's
// Condition constrains key (compared case-insensitively).
func (s statement) conditionKey(key string) bool {
	for _, block := range s.Condition {
		for k := range block {
			if strings.EqualFold(k, key) {
				return true
			}
		}
	}
	return false
}

// grantsAction reports whether one of the statement's action patterns
// matches action.
func (s statement) grantsAction(action string) bool {
	return lo.ContainsBy(s.Action, func(pattern string) bool {
		return wildcardMatch(pattern, action)
	})
}

// label identifies the statement in result details.
func (s statement) label(i int) string {
	if s.Sid != "" {
		return s.Sid
	}
	return fmt.Sprintf("statement[%d]", i)
}

// stringList decodes a JSON string or array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

// statementList decodes a single statement object or an array of them.
type statementList []statement

func (l *statementList) UnmarshalJSON(b []byte) error {
	var many []statement
	if err := json.Unmarshal(b, &many); err == nil {
		*l = many
		return nil
	}
	var single statement
	if err := json.Unmarshal(b, &single); err != nil {
		return fmt.Errorf("decode statement: %w", err)
	}
	*l = statementList{single}
	return nil
}

// principal is either the bare wildcard "*" or a map of principal type
// (AWS, Service, Federated, CanonicalUser) to values.
type principal struct {
	Wildcard bool
	Entries  map[string]stringList
}

func (p *principal) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		p.Wildcard = single == "*"
		return nil
	}
	return json.Unmarshal(b, &p.Entries)
}

func (p principal) MarshalJSON() ([]byte, error) {
	if p.Wildcard {
		return json.Marshal("*")
	}
	return json.Marshal(p.Entries)
}

// values returns the principals of the given type.
func (p *principal) values(kind string) []string {
	if p == nil {
		return nil
	}
	return p.Entries[kind]
}

// anyone reports whether the principal admits every AWS identity.
func (p *principal) anyone() bool {
	if p == nil {
		return false
	}
	return p.Wildcard || lo.Contains(p.values("AWS"), "*")
}

// parsePolicyDocument decodes raw, which may be URL-encoded as returned by
// the IAM API.
func parsePolicyDocument(raw string) (*policyDocument, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "%") {
		decoded, err := url.PathUnescape(text)
		if err != nil {
			return nil, fmt.Errorf("url-decode policy document: %w", err)
		}
		text = decoded
	}
	var doc policyDocument
	if err := json.UnmarshalFromString(text, &doc); err != nil {
		return nil, fmt.Errorf("parse policy document: %w", err)
	}
	return &doc, nil
}

// wildcardMatch matches value against an IAM pattern where * matches any
// run of characters and ? any single character. Comparison ignores case.
func wildcardMatch(pattern, value string) bool {
	p := []rune(strings.ToLower(pattern))
	v := []rune(strings.ToLower(value))

	pi, vi := 0, 0
	star, mark := -1, 0
	for vi < len(v) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == v[vi]):
			pi++
			vi++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, vi
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			vi = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
