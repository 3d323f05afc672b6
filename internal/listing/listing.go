// Package listing renders directory listings for the file server.
//
// Listings are produced as HTML, built as an x/net/html node tree so that
// every name and link is escaped by the renderer, or as Markdown converted
// from that same HTML.
package listing

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"slices"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Entry is a single line of a directory listing.
type Entry struct {
	// Name is the text shown for the entry. Directories end in "/" and
	// symbolic links end in "@".
	Name string
	// Href is the escaped relative link to the entry.
	Href string
}

// Entries converts directory entries into listing entries, sorted by name
// ignoring case.
func Entries(dirents []fs.DirEntry) []Entry {
	// Collators keep internal buffers, so one is created per call.
	col := collate.New(language.Und, collate.IgnoreCase)
	sorted := slices.Clone(dirents)
	slices.SortStableFunc(sorted, func(a, b fs.DirEntry) int {
		return col.CompareString(a.Name(), b.Name())
	})

	entries := make([]Entry, 0, len(sorted))
	for _, d := range sorted {
		name := d.Name()
		display, link := name, name
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			display = name + "@"
		case d.IsDir():
			display = name + "/"
			link = name + "/"
		}
		entries = append(entries, Entry{
			Name: display,
			Href: (&url.URL{Path: link}).String(),
		})
	}
	return entries
}

// Document builds the listing page for urlPath as an HTML node tree.
func Document(urlPath string, entries []Entry) *html.Node {
	title := "Directory listing for " + urlPath

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(meta)
	head.AppendChild(withText(element(atom.Title), title))
	root.AppendChild(head)

	body := element(atom.Body)
	body.AppendChild(withText(element(atom.H1), title))
	body.AppendChild(element(atom.Hr))

	list := element(atom.Ul)
	for _, e := range entries {
		a := element(atom.A)
		a.Attr = []html.Attribute{{Key: "href", Val: e.Href}}
		withText(a, e.Name)

		li := element(atom.Li)
		li.AppendChild(a)
		list.AppendChild(li)
	}
	body.AppendChild(list)
	body.AppendChild(element(atom.Hr))
	root.AppendChild(body)

	return doc
}

// RenderHTML writes the HTML listing for urlPath to w.
func RenderHTML(w io.Writer, urlPath string, entries []Entry) error {
	return html.Render(w, Document(urlPath, entries))
}

// RenderMarkdown writes the listing for urlPath to w as Markdown.
func RenderMarkdown(w io.Writer, urlPath string, entries []Entry) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, urlPath, entries); err != nil {
		return err
	}

	conv := md.NewConverter("", true, nil)
	out, err := conv.ConvertBytes(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to convert listing to markdown: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
