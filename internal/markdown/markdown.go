// Package markdown reads and writes the fenced code blocks used to carry
// structured data inside issue and comment bodies.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// LangJSON is the info string of blocks holding version sets.
const LangJSON = "json"

const fence = "```"

var parser = goldmark.New().Parser()

// Fence wraps content in a fenced code block tagged with lang.
func Fence(lang, content string) string {
	return strings.Join([]string{fence + lang, content, fence}, "\n")
}

// FencedBlocks returns the text of every top-level fenced code block in body
// whose whole info string is lang, in document order. Blocks nested in lists
// or quotes are not considered, nor are blocks whose info string carries
// attributes after the language.
func FencedBlocks(body, lang string) []string {
	source := []byte(body)
	doc := parser.Parse(text.NewReader(source))

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		block, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			continue
		}
		if infoString(block, source) != lang {
			continue
		}
		blocks = append(blocks, blockText(block, source))
	}
	return blocks
}

// infoString returns the trimmed text after the opening fence.
func infoString(block *ast.FencedCodeBlock, source []byte) string {
	if block.Info == nil {
		return ""
	}
	return strings.TrimSpace(string(block.Info.Segment.Value(source)))
}

func blockText(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
	}
	return buf.String()
}
