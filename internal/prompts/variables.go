package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"text/template/parse"
)

// ExtractVariables lists the fields a template reads, e.g.
// "into {{.TargetLanguage}}" gives ["TargetLanguage"]. Nested fields are
// dotted ("Doc.Title"). Text that does not parse yields nil.
func ExtractVariables(text string) []string {
	trees, err := parse.Parse("prompt", text, "", "", map[string]any{})
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, tree := range trees {
		walk(tree.Root, seen)
	}

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func walk(node parse.Node, seen map[string]bool) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			walk(c, seen)
		}
	case *parse.ActionNode:
		walk(n.Pipe, seen)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				walk(arg, seen)
			}
		}
	case *parse.FieldNode:
		seen[strings.Join(n.Ident, ".")] = true
	case *parse.IfNode:
		walk(n.Pipe, seen)
		walk(n.List, seen)
		walk(n.ElseList, seen)
	case *parse.RangeNode:
		walk(n.Pipe, seen)
		walk(n.List, seen)
		walk(n.ElseList, seen)
	case *parse.WithNode:
		walk(n.Pipe, seen)
		walk(n.List, seen)
		walk(n.ElseList, seen)
	}
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
