package dispatch

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// The SOAP service answers with free-form result elements rather than a
// schema'd response, so success is decided by an ordered heuristic rule
// table: fault → result description keywords → structured status values →
// descendant scan → default success. The rules and vocabularies mirror what
// the service actually emits; keeping them enumerated here makes the
// heuristic auditable and testable in isolation.
//
// The default-success fallback ("no fault, nothing recognizable") is an
// inherited policy choice, not a verified contract. Outcomes decided that
// way carry RuleIndeterminate so callers can tell them apart.

// Rule names which interpretation rule decided an outcome.
type Rule string

const (
	RuleParseError    Rule = "parse-error"
	RuleFault         Rule = "soap-fault"
	RuleDescription   Rule = "result-description"
	RuleStatusValue   Rule = "structured-status"
	RuleDescendant    Rule = "descendant-scan"
	RuleIndeterminate Rule = "indeterminate-default"
)

// Outcome is the interpreted result of one SOAP call.
type Outcome struct {
	Success bool
	Message string
	Rule    Rule
}

// Keyword vocabularies for free-text result descriptions. Substring match,
// lower case; success is checked before failure.
var (
	successKeywords = []string{
		"sucesso", "ok", "processado", "realizado", "concluido",
		"gravado", "salvo", "demitido",
	}
	failureKeywords = []string{
		"erro", "falha", "inválido", "negado", "não encontrado", "já existe",
	}
)

// Exact-value vocabularies for structured status/code/return elements.
var (
	successValues = map[string]bool{
		"ok": true, "sucesso": true, "1": true, "true": true, "sim": true,
	}
	failureValues = map[string]bool{
		"erro": true, "falha": true, "0": true, "false": true,
		"nao": true, "não": true,
	}
)

// InterpretSOAP decides success or failure from a raw SOAP response body.
func InterpretSOAP(body []byte) Outcome {
	root, err := parseXMLTree(body)
	if err != nil {
		return Outcome{Success: false, Message: fmt.Sprintf("XML parse error: %v", err), Rule: RuleParseError}
	}

	// Rule 1: a SOAP Fault always wins.
	if fault := root.find("fault"); fault != nil {
		msg := "SOAP fault"
		if fs := fault.find("faultstring"); fs != nil && fs.text != "" {
			msg = fs.text
		}
		return Outcome{Success: false, Message: msg, Rule: RuleFault}
	}

	// Rule 2: free-text result descriptions, keyword matched.
	for _, node := range root.all("descricao") {
		if node.text == "" {
			continue
		}
		if ok, matched := matchKeywords(node.text); matched {
			return Outcome{Success: ok, Message: node.text, Rule: RuleDescription}
		}
	}

	// Rule 3: structured status fields with exact-value vocabularies.
	for _, name := range []string{"status", "codigo", "retorno"} {
		for _, node := range root.all(name) {
			value := strings.ToLower(strings.TrimSpace(node.text))
			if value == "" {
				continue
			}
			if successValues[value] {
				return Outcome{Success: true, Message: node.text, Rule: RuleStatusValue}
			}
			if failureValues[value] {
				return Outcome{Success: false, Message: node.text, Rule: RuleStatusValue}
			}
		}
	}

	// Rule 4: scan anything that calls itself a result.
	for _, node := range root.descendants() {
		lower := strings.ToLower(node.name)
		if node.text == "" {
			continue
		}
		if !strings.Contains(lower, "result") &&
			!strings.Contains(lower, "response") &&
			!strings.Contains(lower, "return") {
			continue
		}
		if ok, matched := matchKeywords(node.text); matched {
			return Outcome{Success: ok, Message: node.text, Rule: RuleDescendant}
		}
	}

	// Rule 5: nothing recognizable and no fault, treated as accepted.
	return Outcome{
		Success: true,
		Message: "indeterminate: no fault and no recognizable result element",
		Rule:    RuleIndeterminate,
	}
}

// matchKeywords classifies free text against the keyword vocabularies.
// matched is false when neither vocabulary hits.
func matchKeywords(text string) (success, matched bool) {
	lower := strings.ToLower(text)
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return true, true
		}
	}
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return false, true
		}
	}
	return false, false
}

// xmlNode is a minimal namespace-blind element tree. Only local names and
// direct text content matter to the rules above.
type xmlNode struct {
	name     string
	text     string
	children []*xmlNode
}

// find returns the first descendant (or the node itself) whose local name
// matches case-insensitively.
func (n *xmlNode) find(name string) *xmlNode {
	if strings.EqualFold(n.name, name) {
		return n
	}
	for _, child := range n.children {
		if found := child.find(name); found != nil {
			return found
		}
	}
	return nil
}

// all returns every descendant whose local name matches case-insensitively,
// in document order.
func (n *xmlNode) all(name string) []*xmlNode {
	var out []*xmlNode
	if strings.EqualFold(n.name, name) {
		out = append(out, n)
	}
	for _, child := range n.children {
		out = append(out, child.all(name)...)
	}
	return out
}

// descendants returns the whole subtree in document order.
func (n *xmlNode) descendants() []*xmlNode {
	out := []*xmlNode{n}
	for _, child := range n.children {
		out = append(out, child.descendants()...)
	}
	return out
}

// parseXMLTree builds the element tree. Legacy SOAP endpoints in this
// integration answer ISO-8859-1 as often as UTF-8, so the decoder carries a
// charset reader for the latin encodings.
func parseXMLTree(body []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader
	dec.Strict = false

	root := &xmlNode{name: ""}
	stack := []*xmlNode{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if text := strings.TrimSpace(string(t)); text != "" {
				current := stack[len(stack)-1]
				if current.text == "" {
					current.text = text
				} else {
					current.text += " " + text
				}
			}
		}
	}

	if len(root.children) == 0 {
		return nil, fmt.Errorf("no XML content")
	}
	return root, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}
