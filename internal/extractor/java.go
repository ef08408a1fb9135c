package extractor

import (
	"context"
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"libscout/internal/fact"
)

// StructureFingerprinter fingerprints Java sources by the shape of their type
// declarations. Method bodies, field initializers, comments and formatting do
// not affect the fingerprint.
type StructureFingerprinter struct{}

func (s *StructureFingerprinter) Mode() string { return ModeStructure }

func (s *StructureFingerprinter) Accepts(entryName string) bool {
	return strings.HasSuffix(entryName, ".java")
}

func (s *StructureFingerprinter) GetLanguage() *sitter.Language {
	return java.GetLanguage()
}

func (s *StructureFingerprinter) GetQuery() string {
	return `(package_declaration [(identifier) (scoped_identifier)] @pkg)`
}

// Fingerprint parses one compilation unit and returns a fact per declared
// type, nested types included as Outer$Inner.
func (s *StructureFingerprinter) Fingerprint(entryName string, data []byte) ([]fact.Fact, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", entryName, err)
	}
	defer tree.Close()
	root := tree.RootNode()

	pkg, err := s.packageName(root, data)
	if err != nil {
		return nil, err
	}

	var facts []fact.Fact
	for i := 0; i < int(root.NamedChildCount()); i++ {
		facts = s.collect(facts, root.NamedChild(i), data, pkg, "")
	}
	return facts, nil
}

func (s *StructureFingerprinter) packageName(root *sitter.Node, src []byte) (string, error) {
	q, err := sitter.NewQuery([]byte(s.GetQuery()), s.GetLanguage())
	if err != nil {
		return "", fmt.Errorf("failed to create query: %w", err)
	}
	defer q.Close()
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)
	if m, ok := qc.NextMatch(); ok && len(m.Captures) > 0 {
		return m.Captures[0].Node.Content(src), nil
	}
	return "", nil
}

var typeKinds = map[string]string{
	"class_declaration":           "class",
	"interface_declaration":       "interface",
	"enum_declaration":            "enum",
	"record_declaration":          "record",
	"annotation_type_declaration": "annotation",
}

// collect appends the facts of node, if it declares a type, and of every type
// nested in it.
func (s *StructureFingerprinter) collect(facts []fact.Fact, node *sitter.Node, src []byte, pkg, outer string) []fact.Fact {
	kind, ok := typeKinds[node.Type()]
	if !ok {
		return facts
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return facts
	}
	name := nameNode.Content(src)
	if outer != "" {
		name = outer + "$" + name
	}
	fqn := name
	if pkg != "" {
		fqn = pkg + "." + name
	}

	body := node.ChildByFieldName("body")
	header := canonicalize(headerText(node, body, src))
	var members []string
	if body != nil {
		members = s.members(body, src)
		for _, nested := range nestedTypes(body) {
			facts = s.collect(facts, nested, src, pkg, name)
		}
	}
	return append(facts, fact.Fact{
		Fqn:         fqn,
		Fingerprint: signatureDigest(kind, header, members),
	})
}

// members returns the sorted canonical signatures of the declarations in a
// type body.
func (s *StructureFingerprinter) members(body *sitter.Node, src []byte) []string {
	var out []string
	walkMembers(body, func(m *sitter.Node) {
		var sig string
		switch m.Type() {
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration",
			"annotation_type_element_declaration":
			sig = m.Type() + " " + headerText(m, m.ChildByFieldName("body"), src)
		case "field_declaration", "constant_declaration":
			sig = fieldSignature(m, src)
		case "enum_constant":
			if n := m.ChildByFieldName("name"); n != nil {
				sig = "constant " + n.Content(src)
			}
		default:
			if kind, ok := typeKinds[m.Type()]; ok {
				if n := m.ChildByFieldName("name"); n != nil {
					sig = kind + " " + n.Content(src)
				}
			}
		}
		if sig = canonicalize(sig); sig != "" {
			out = append(out, sig)
		}
	})
	slices.Sort(out)
	return out
}

// walkMembers visits the declarations of a body, descending into the
// enum_body_declarations wrapper.
func walkMembers(body *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "enum_body_declarations" {
			walkMembers(child, visit)
			continue
		}
		visit(child)
	}
}

func nestedTypes(body *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	walkMembers(body, func(m *sitter.Node) {
		if _, ok := typeKinds[m.Type()]; ok {
			out = append(out, m)
		}
	})
	return out
}

// headerText is the source of node up to its body, or all of it when it has
// none. Comments inside the header are dropped.
func headerText(node, body *sitter.Node, src []byte) string {
	end := node.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	var b strings.Builder
	pos := node.StartByte()
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.StartByte() >= end {
			break
		}
		if isComment(c) {
			b.Write(src[pos:c.StartByte()])
			pos = c.EndByte()
		}
	}
	if pos < end {
		b.Write(src[pos:end])
	}
	return b.String()
}

func isComment(n *sitter.Node) bool {
	return n.Type() == "line_comment" || n.Type() == "block_comment" || n.Type() == "comment"
}

// fieldSignature keeps modifiers, type and declared names; initializers are
// implementation detail.
func fieldSignature(m *sitter.Node, src []byte) string {
	parts := []string{"field"}
	for i := 0; i < int(m.NamedChildCount()); i++ {
		if c := m.NamedChild(i); c.Type() == "modifiers" {
			parts = append(parts, c.Content(src))
		}
	}
	if t := m.ChildByFieldName("type"); t != nil {
		parts = append(parts, t.Content(src))
	}
	for i := 0; i < int(m.NamedChildCount()); i++ {
		c := m.NamedChild(i)
		if c.Type() != "variable_declarator" {
			continue
		}
		if n := c.ChildByFieldName("name"); n != nil {
			parts = append(parts, n.Content(src))
		}
	}
	return strings.Join(parts, " ")
}
