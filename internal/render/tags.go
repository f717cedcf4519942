package render

import (
	"html"
	"regexp"
	"strings"
)

var (
	// templateTag matches a complete template tag, comment or expression.
	templateTag = regexp.MustCompile(`(?s)\{\{.*?\}\}|\{%.*?%\}|\{#.*?#\}`)

	// structuralTag matches {%p ...%}, {%tr ...%}, {%tc ...%} and {%r ...%}.
	// The tag replaces the whole enclosing paragraph, table row, cell or run.
	structuralTag = regexp.MustCompile(`\{%(p|tr|tc|r)\s+(.*?)\s*%\}`)

	// markedExpression matches {{p x}} style markers, which render in place.
	markedExpression = regexp.MustCompile(`\{\{(?:p|tr|tc|r)\s+`)

	blockOnlyParagraph = regexp.MustCompile(`^\s*(?:\{%.*?%\}\s*)+$`)
	blockTag           = regexp.MustCompile(`\{%.*?%\}`)

	loopAttribute = regexp.MustCompile(`\bloop\.(index0|index|revindex0|revindex|first|last)\b`)
	filterCall    = regexp.MustCompile(`\|\s*([A-Za-z_]\w*)\(\s*('[^']*'|"[^"]*"|-?[\w.]+)\s*\)`)
	itemsCall     = regexp.MustCompile(`\.items\(\)`)
)

var loopAttributes = map[string]string{
	"index":     "forloop.Counter",
	"index0":    "forloop.Counter0",
	"revindex":  "forloop.Revcounter",
	"revindex0": "forloop.Revcounter0",
	"first":     "forloop.First",
	"last":      "forloop.Last",
}

// prepareTree rewrites a parsed part so that every template tag is
// contiguous text and structural tags stand outside the WordprocessingML
// element they control.
func prepareTree(root *xmlNode) {
	walkXML(root, func(n *xmlNode) bool {
		if isElement(n, "p") {
			mergeSplitTags(n)
		}
		return true
	})

	lifted := make(map[*xmlNode][]string)
	collectStructuralTags(root, nil, lifted)
	for _, container := range blockContainers(root) {
		for _, p := range container.Children {
			if !isElement(p, "p") {
				continue
			}
			if _, ok := lifted[p]; ok {
				continue
			}
			text := paragraphText(p)
			if strings.Contains(text, "{%") && blockOnlyParagraph.MatchString(text) {
				lifted[p] = blockTag.FindAllString(text, -1)
			}
		}
	}
	liftElements(root, lifted)
}

// blockContainers returns the elements whose paragraphs may be dropped in
// favour of their block tags: the document body, or a header or footer root.
func blockContainers(root *xmlNode) []*xmlNode {
	out := []*xmlNode{root}
	for _, child := range root.Children {
		if isElement(child, "body") {
			out = append(out, child)
		}
	}
	return out
}

// mergeSplitTags moves every tag that Word spread across several runs into
// the first run it starts in. Text outside tags keeps its run.
func mergeSplitTags(p *xmlNode) {
	texts := paragraphTexts(p)
	if len(texts) < 2 {
		return
	}

	var combined strings.Builder
	var owner []int
	for i, t := range texts {
		s := nodeText(t)
		combined.WriteString(s)
		for range len(s) {
			owner = append(owner, i)
		}
	}
	full := combined.String()

	changed := false
	for _, span := range templateTag.FindAllStringIndex(full, -1) {
		first := owner[span[0]]
		for k := span[0]; k < span[1]; k++ {
			if owner[k] != first {
				owner[k] = first
				changed = true
			}
		}
	}
	if !changed {
		return
	}

	rebuilt := make([]strings.Builder, len(texts))
	for k := 0; k < len(full); k++ {
		rebuilt[owner[k]].WriteByte(full[k])
	}
	for i, t := range texts {
		if next := rebuilt[i].String(); next != nodeText(t) {
			setNodeText(t, next)
		}
	}
}

func collectStructuralTags(node *xmlNode, ancestors []*xmlNode, lifted map[*xmlNode][]string) {
	if node.IsText {
		return
	}
	if isElement(node, "t") {
		text := nodeText(node)
		if markedExpression.MatchString(text) {
			text = markedExpression.ReplaceAllString(text, "{{ ")
			setNodeText(node, text)
		}
		matches := structuralTag.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			return
		}
		for _, m := range matches {
			tag := "{% " + m[2] + " %}"
			if target := nearestAncestor(ancestors, m[1]); target != nil {
				lifted[target] = append(lifted[target], tag)
				continue
			}
			text = strings.Replace(text, m[0], tag, 1)
		}
		setNodeText(node, text)
		return
	}

	ancestors = append(ancestors, node)
	for _, child := range node.Children {
		collectStructuralTags(child, ancestors, lifted)
	}
}

func nearestAncestor(ancestors []*xmlNode, local string) *xmlNode {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if isElement(ancestors[i], local) {
			return ancestors[i]
		}
	}
	return nil
}

// liftElements swaps each marked element for its bare tags. The outermost
// marked element wins.
func liftElements(node *xmlNode, lifted map[*xmlNode][]string) {
	for i, child := range node.Children {
		if tags, ok := lifted[child]; ok {
			node.Children[i] = &xmlNode{IsText: true, Text: strings.Join(tags, "")}
			continue
		}
		if !child.IsText {
			liftElements(child, lifted)
		}
	}
}

// restoreTags undoes XML escaping inside template tags and maps the common
// Jinja spellings onto their pongo2 equivalents.
func restoreTags(text string) string {
	return templateTag.ReplaceAllStringFunc(text, func(tag string) string {
		if strings.Contains(tag, "<") {
			return tag
		}
		tag = html.UnescapeString(tag)
		if strings.HasPrefix(tag, "{#") {
			return tag
		}
		tag = loopAttribute.ReplaceAllStringFunc(tag, func(m string) string {
			return loopAttributes[strings.TrimPrefix(m, "loop.")]
		})
		tag = filterCall.ReplaceAllString(tag, "|$1:$2")
		if strings.HasPrefix(tag, "{%") {
			tag = itemsCall.ReplaceAllString(tag, "")
		}
		return tag
	})
}
