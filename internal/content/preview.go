package content

import (
	"strings"

	"golang.org/x/net/html"
)

// defaultPreviewRunes は一覧カードに表示するプレビューの最大文字数。
const defaultPreviewRunes = 120

// PlainText はHTMLからタグを除いたプレーンテキストを抽出する。
// script・styleの中身は含めず、連続する空白は1つに畳む。
// パースできない断片はそのまま文字列として扱うのではなく空を返す。
func PlainText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Preview はHTML本文から一覧表示用の短いプレーンテキストを生成する。
// maxRunesが0以下の場合は既定の長さを使う。長すぎる本文は
// 文字単位（rune）で切り詰めて省略記号を付ける。
func Preview(rawHTML string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = defaultPreviewRunes
	}

	text := PlainText(rawHTML)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
