package listing

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/PuerkitoBio/goquery"
)

func testEntries(t *testing.T) []Entry {
	t.Helper()

	fsys := fstest.MapFS{
		"zeta.txt":       {Data: []byte("z")},
		"Alpha.html":     {Data: []byte("a")},
		"beta/index.css": {Data: []byte("b")},
		"my file.js":     {Data: []byte("m")},
		"link":           {Mode: fs.ModeSymlink},
		"c:d.json":       {Data: []byte("{}")},
	}
	dirents, err := fs.ReadDir(fsys, ".")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	return Entries(dirents)
}

func TestEntries(t *testing.T) {
	entries := testEntries(t)

	want := []Entry{
		{Name: "Alpha.html", Href: "Alpha.html"},
		{Name: "beta/", Href: "beta/"},
		{Name: "c:d.json", Href: "./c:d.json"},
		{Name: "link@", Href: "link"},
		{Name: "my file.js", Href: "my%20file.js"},
		{Name: "zeta.txt", Href: "zeta.txt"},
	}
	if len(entries) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("Entries()[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestRenderHTML(t *testing.T) {
	entries := testEntries(t)

	var buf bytes.Buffer
	if err := RenderHTML(&buf, "/docs/", entries); err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "<!DOCTYPE html>") {
		t.Errorf("RenderHTML() output should start with a doctype, got %q", buf.String()[:20])
	}

	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		t.Fatalf("failed to parse listing: %v", err)
	}
	if got, want := doc.Find("title").Text(), "Directory listing for /docs/"; got != want {
		t.Errorf("title = %q, want %q", got, want)
	}
	if got, want := doc.Find("h1").Text(), "Directory listing for /docs/"; got != want {
		t.Errorf("h1 = %q, want %q", got, want)
	}

	links := doc.Find("ul li a")
	if links.Length() != len(entries) {
		t.Fatalf("found %d links, want %d", links.Length(), len(entries))
	}
	links.Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href != entries[i].Href {
			t.Errorf("link %d href = %q, want %q", i, href, entries[i].Href)
		}
		if s.Text() != entries[i].Name {
			t.Errorf("link %d text = %q, want %q", i, s.Text(), entries[i].Name)
		}
	})
}

func TestRenderHTMLEscapes(t *testing.T) {
	entries := []Entry{{Name: "<script>.html", Href: "%3Cscript%3E.html"}}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, "/<b>/", entries); err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>") || strings.Contains(out, "<b>") {
		t.Errorf("RenderHTML() did not escape names: %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;.html") {
		t.Errorf("RenderHTML() output missing escaped name: %s", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	entries := []Entry{
		{Name: "beta/", Href: "beta/"},
		{Name: "zeta.txt", Href: "zeta.txt"},
	}

	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, "/docs/", entries); err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Directory listing for /docs/", "[beta/](beta/)", "[zeta.txt](zeta.txt)"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderMarkdown() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<ul>") {
		t.Errorf("RenderMarkdown() output still contains HTML:\n%s", out)
	}
}
