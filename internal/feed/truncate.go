package feed

import (
	"bytes"
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// TruncateHTML keeps at most limit visible characters of src. Markup does not
// count towards the limit, an entity counts as one character, tags are never
// split and every element still open at the cut is closed.
func TruncateHTML(src string, limit int) string {
	var (
		out   bytes.Buffer
		open  []string
		count int
	)

	z := nethtml.NewTokenizer(strings.NewReader(src))
loop:
	for {
		tt := z.Next()
		switch tt {
		case nethtml.ErrorToken:
			// io.EOF or malformed input; either way emit what we have
			break loop

		case nethtml.TextToken:
			text := html.UnescapeString(string(z.Raw()))
			runes := []rune(text)
			if count+len(runes) > limit {
				out.WriteString(html.EscapeString(string(runes[:limit-count])))
				count = limit
				break loop
			}
			out.Write(z.Raw())
			count += len(runes)

		case nethtml.StartTagToken:
			if count >= limit {
				break loop
			}
			name, _ := z.TagName()
			out.Write(z.Raw())
			if !voidElements[string(name)] {
				open = append(open, string(name))
			}

		case nethtml.EndTagToken:
			name, _ := z.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					for j := len(open) - 1; j > i; j-- {
						out.WriteString("</" + open[j] + ">")
					}
					open = open[:i]
					out.Write(z.Raw())
					break
				}
			}

		case nethtml.SelfClosingTagToken:
			if count >= limit {
				break loop
			}
			out.Write(z.Raw())

		default:
			// comments and doctypes are kept verbatim
			if count < limit {
				out.Write(z.Raw())
			}
		}
	}

	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return out.String()
}

// VisibleLen counts the characters TruncateHTML measures against its limit.
func VisibleLen(src string) int {
	n := 0
	z := nethtml.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return n
		case nethtml.TextToken:
			n += len([]rune(html.UnescapeString(string(z.Raw()))))
		}
	}
}
