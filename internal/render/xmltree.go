package render

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	wmlNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
)

type xmlNode struct {
	Name     xml.Name
	Attr     []xml.Attr
	Children []*xmlNode
	Text     string
	IsText   bool
}

// xmlPart is a parsed package part. The root start and end tags are kept
// verbatim so namespace declarations survive a round trip.
type xmlPart struct {
	header    string
	rootStart string
	rootEnd   string
	root      *xmlNode
}

var xmlHeaderPattern = regexp.MustCompile(`(?s)^\s*(<\?xml[^>]+\?>)`)

func parsePart(text string) (*xmlPart, error) {
	part := &xmlPart{}
	if match := xmlHeaderPattern.FindStringSubmatch(text); len(match) > 0 {
		part.header = match[1]
		text = strings.TrimSpace(text[len(match[0]):])
	}

	rootStart, rootEnd, err := extractRootTags(text)
	if err != nil {
		return nil, err
	}
	part.rootStart, part.rootEnd = rootStart, rootEnd

	decoder := xml.NewDecoder(strings.NewReader(text))
	var stack []*xmlNode
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &xmlNode{Name: t.Name, Attr: t.Attr}
			if len(stack) == 0 {
				part.root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 || len(t) == 0 {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &xmlNode{IsText: true, Text: string(t)})
		}
	}

	if part.root == nil {
		return nil, errors.New("part has no root element")
	}
	return part, nil
}

// encode writes the tree back out with the prefixes the template declared.
func (p *xmlPart) encode() (string, error) {
	var buf bytes.Buffer
	if p.header != "" {
		buf.WriteString(p.header)
		if !strings.HasSuffix(p.header, "\n") {
			buf.WriteByte('\n')
		}
	}

	declared := namespaceDecls(p.root)
	prefixes := map[string]string{xmlNamespace: "xml"}
	for prefix, uri := range declared {
		if prefix == "" {
			continue
		}
		if existing, ok := prefixes[uri]; !ok || prefix < existing {
			prefixes[uri] = prefix
		}
	}

	clone := cloneNode(p.root)
	normalizeXMLNSAttrs(clone)
	applyPrefixMap(clone, prefixes)

	required := make(map[string]string)
	for prefix := range prefixesUsed(clone) {
		if uri, ok := declared[prefix]; ok {
			required[prefix] = uri
		}
	}
	buf.WriteString(ensureRootHasNamespaces(p.rootStart, required))

	encoder := xml.NewEncoder(&buf)
	for _, child := range clone.Children {
		if err := encodeXMLNode(encoder, child); err != nil {
			return "", err
		}
	}
	if err := encoder.Flush(); err != nil {
		return "", err
	}

	buf.WriteString(p.rootEnd)
	return buf.String(), nil
}

func encodeXMLNode(encoder *xml.Encoder, node *xmlNode) error {
	if node.IsText {
		return encoder.EncodeToken(xml.CharData(node.Text))
	}
	start := xml.StartElement{Name: node.Name, Attr: node.Attr}
	if err := encoder.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := encodeXMLNode(encoder, child); err != nil {
			return err
		}
	}
	return encoder.EncodeToken(start.End())
}

// namespaceDecls collects every prefix declaration in the tree. Word
// declares almost everything on the root, but drawings carry their own.
func namespaceDecls(root *xmlNode) map[string]string {
	out := make(map[string]string)
	walkXML(root, func(n *xmlNode) bool {
		if n.IsText {
			return true
		}
		for _, attr := range n.Attr {
			switch {
			case attr.Name.Space == "xmlns":
				if _, ok := out[attr.Name.Local]; !ok {
					out[attr.Name.Local] = attr.Value
				}
			case attr.Name.Space == "" && attr.Name.Local == "xmlns":
				if _, ok := out[""]; !ok {
					out[""] = attr.Value
				}
			}
		}
		return true
	})
	return out
}

func prefixesUsed(node *xmlNode) map[string]struct{} {
	out := make(map[string]struct{})
	walkXML(node, func(n *xmlNode) bool {
		if n.IsText {
			return true
		}
		if prefix := prefixFromName(n.Name.Local); prefix != "" {
			out[prefix] = struct{}{}
		}
		for _, attr := range n.Attr {
			if prefix := prefixFromName(attr.Name.Local); prefix != "" {
				out[prefix] = struct{}{}
			}
		}
		return true
	})
	return out
}

func prefixFromName(name string) string {
	if name == "xmlns" || strings.HasPrefix(name, "xmlns:") {
		return ""
	}
	if idx := strings.IndexByte(name, ':'); idx > 0 {
		return name[:idx]
	}
	return ""
}

var xmlnsAttrPattern = regexp.MustCompile(`\s+xmlns(?::([A-Za-z0-9._-]+))?="([^"]+)"`)

func ensureRootHasNamespaces(rootStart string, required map[string]string) string {
	existing := make(map[string]string)
	for _, match := range xmlnsAttrPattern.FindAllStringSubmatch(rootStart, -1) {
		existing[match[1]] = match[2]
	}

	var missing []string
	for prefix := range required {
		if prefix == "xml" {
			continue
		}
		if _, ok := existing[prefix]; !ok {
			missing = append(missing, prefix)
		}
	}
	if len(missing) == 0 {
		return rootStart
	}
	sort.Strings(missing)

	var insert strings.Builder
	for _, prefix := range missing {
		insert.WriteString(` xmlns:` + prefix + `="` + required[prefix] + `"`)
	}
	idx := strings.LastIndex(rootStart, ">")
	if strings.HasSuffix(rootStart, "/>") {
		idx = len(rootStart) - 2
	}
	if idx == -1 {
		return rootStart
	}
	return rootStart[:idx] + insert.String() + rootStart[idx:]
}

func extractRootTags(text string) (string, string, error) {
	start, end, name, err := findRootStartTag(text)
	if err != nil {
		return "", "", err
	}
	endTag := "</" + name + ">"
	endPos := strings.LastIndex(text, endTag)
	if endPos == -1 {
		return "", "", errors.New("root end tag not found")
	}
	return text[start : end+1], text[endPos : endPos+len(endTag)], nil
}

func findRootStartTag(text string) (int, int, string, error) {
	i := 0
	for {
		idx := strings.IndexByte(text[i:], '<')
		if idx == -1 {
			return 0, 0, "", errors.New("root start tag not found")
		}
		i += idx
		closer := ""
		switch {
		case strings.HasPrefix(text[i:], "<?"):
			closer = "?>"
		case strings.HasPrefix(text[i:], "<!--"):
			closer = "-->"
		case strings.HasPrefix(text[i:], "<!"):
			closer = ">"
		}
		if closer == "" {
			break
		}
		end := strings.Index(text[i:], closer)
		if end == -1 {
			return 0, 0, "", errors.New("prolog not terminated")
		}
		i += end + len(closer)
	}

	start := i
	var quote byte
	for i = start + 1; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			name := strings.TrimSpace(text[start+1 : i])
			if cut := strings.IndexAny(name, " \t\r\n/"); cut != -1 {
				name = name[:cut]
			}
			if name == "" {
				return 0, 0, "", errors.New("root tag name missing")
			}
			return start, i, name, nil
		}
	}
	return 0, 0, "", errors.New("root start tag not terminated")
}

func applyPrefixMap(node *xmlNode, prefixes map[string]string) {
	if !node.IsText {
		if prefix, ok := prefixes[node.Name.Space]; ok && prefix != "" {
			node.Name = xml.Name{Local: prefix + ":" + node.Name.Local}
		}
		for i, attr := range node.Attr {
			if attr.Name.Space == "" {
				continue
			}
			if prefix, ok := prefixes[attr.Name.Space]; ok && prefix != "" {
				node.Attr[i].Name = xml.Name{Local: prefix + ":" + attr.Name.Local}
			}
		}
	}
	for _, child := range node.Children {
		applyPrefixMap(child, prefixes)
	}
}

func normalizeXMLNSAttrs(node *xmlNode) {
	if !node.IsText {
		for i, attr := range node.Attr {
			if attr.Name.Space != "xmlns" {
				continue
			}
			node.Attr[i].Name = xml.Name{Local: "xmlns:" + attr.Name.Local}
		}
	}
	for _, child := range node.Children {
		normalizeXMLNSAttrs(child)
	}
}

func walkXML(node *xmlNode, visit func(*xmlNode) bool) {
	if node == nil || !visit(node) {
		return
	}
	for _, child := range node.Children {
		walkXML(child, visit)
	}
}

func cloneNode(node *xmlNode) *xmlNode {
	out := &xmlNode{Name: node.Name, Text: node.Text, IsText: node.IsText}
	if len(node.Attr) > 0 {
		out.Attr = append([]xml.Attr(nil), node.Attr...)
	}
	for _, child := range node.Children {
		out.Children = append(out.Children, cloneNode(child))
	}
	return out
}

func isElement(node *xmlNode, local string) bool {
	return node != nil && !node.IsText && node.Name.Space == wmlNamespace && node.Name.Local == local
}

func nodeText(node *xmlNode) string {
	var b strings.Builder
	for _, child := range node.Children {
		if child.IsText {
			b.WriteString(child.Text)
		}
	}
	return b.String()
}

// setNodeText replaces the text of a w:t and keeps its whitespace intact.
func setNodeText(node *xmlNode, text string) {
	node.Children = []*xmlNode{{IsText: true, Text: text}}
	for _, attr := range node.Attr {
		if attr.Name.Local == "space" && (attr.Name.Space == xmlNamespace || attr.Name.Space == "xml") {
			return
		}
	}
	node.Attr = append(node.Attr, xml.Attr{Name: xml.Name{Space: xmlNamespace, Local: "space"}, Value: "preserve"})
}

// paragraphTexts returns the w:t elements that belong to p itself, leaving
// out paragraphs nested in text boxes.
func paragraphTexts(p *xmlNode) []*xmlNode {
	var out []*xmlNode
	var visit func(*xmlNode)
	visit = func(n *xmlNode) {
		for _, child := range n.Children {
			switch {
			case child.IsText || isElement(child, "p"):
			case isElement(child, "t"):
				out = append(out, child)
			default:
				visit(child)
			}
		}
	}
	visit(p)
	return out
}

func paragraphText(p *xmlNode) string {
	var b strings.Builder
	for _, t := range paragraphTexts(p) {
		b.WriteString(nodeText(t))
	}
	return b.String()
}

// checkWellFormed decodes the rendered part end to end.
func checkWellFormed(text string) error {
	decoder := xml.NewDecoder(strings.NewReader(text))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w near %q", err, excerpt(text, int(decoder.InputOffset())))
		}
	}
}

func excerpt(text string, offset int) string {
	start := max(offset-80, 0)
	end := min(offset+80, len(text))
	if start > end {
		return ""
	}
	return text[start:end]
}
