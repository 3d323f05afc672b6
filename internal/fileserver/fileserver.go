// Package fileserver serves files from a document root over HTTP.
//
// Responses carry a Content-Type taken from a mimetab.Table rather than
// from content sniffing, and Range requests are not honored: every
// successful GET returns the whole file.
package fileserver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/f4ah6o/siteserve/internal/listing"
	"github.com/f4ah6o/siteserve/internal/mimetab"
)

// indexFiles are served in place of a listing when present, in order.
var indexFiles = []string{"index.html", "index.htm"}

// Handler serves GET and HEAD requests from a document root.
type Handler struct {
	root    *os.Root
	types   mimetab.Table
	listing bool
	logger  *slog.Logger
}

var _ http.Handler = (*Handler)(nil)

// Option configures a Handler.
type Option func(*Handler)

// WithListing enables or disables directory listings. Listings are
// enabled by default; when disabled, directories without an index file
// are reported as not found.
func WithListing(enabled bool) Option {
	return func(h *Handler) {
		h.listing = enabled
	}
}

// WithLogger sets the logger used for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New returns a Handler serving files below root with Content-Type values
// from types.
func New(root *os.Root, types mimetab.Table, opts ...Option) *Handler {
	h := &Handler{
		root:    root,
		types:   types,
		listing: true,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "501 Unsupported method ("+r.Method+")", http.StatusNotImplemented)
		return
	}

	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	if containsDotDot(upath) {
		http.Error(w, "400 Bad Request: invalid URL path", http.StatusBadRequest)
		return
	}

	name := path.Clean(upath)
	if name == "/" {
		name = "."
	} else {
		name = strings.TrimPrefix(name, "/")
	}

	f, err := h.root.Open(name)
	if err != nil {
		h.openError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.Error("failed to stat file", "path", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	switch {
	case info.IsDir():
		h.serveDir(w, r, name, f)
	case info.Mode().IsRegular() && !strings.HasSuffix(upath, "/"):
		h.serveFile(w, r, name, info, f)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) serveDir(w http.ResponseWriter, r *http.Request, name string, dir *os.File) {
	if !strings.HasSuffix(r.URL.Path, "/") {
		target := r.URL.EscapedPath() + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
		return
	}

	for _, index := range indexFiles {
		ipath := path.Join(name, index)
		f, err := h.root.Open(ipath)
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			f.Close()
			continue
		}
		h.serveFile(w, r, ipath, info, f)
		f.Close()
		return
	}

	if !h.listing {
		http.NotFound(w, r)
		return
	}

	dirents, err := dir.ReadDir(-1)
	if err != nil {
		h.logger.Warn("failed to list directory", "path", name, "error", err)
		http.Error(w, "404 No permission to list directory", http.StatusNotFound)
		return
	}
	entries := listing.Entries(dirents)

	render, ctype := listing.RenderHTML, "text/html; charset=utf-8"
	if prefersMarkdown(r.Header.Get("Accept")) {
		render, ctype = listing.RenderMarkdown, "text/markdown; charset=utf-8"
	}

	var body strings.Builder
	if err := render(&body, r.URL.Path, entries); err != nil {
		h.logger.Error("failed to render listing", "path", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(body.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body.String()); err != nil {
		h.logger.Debug("failed to write listing", "path", name, "error", err)
	}
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name string, info fs.FileInfo, f io.Reader) {
	w.Header().Set("Content-Type", h.types.Lookup(name))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.CopyN(w, f, info.Size()); err != nil {
		// Headers are gone already, nothing left to report to the client.
		h.logger.Debug("failed to send file", "path", name, "error", err)
	}
}

func (h *Handler) openError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.NotFound(w, r)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	case isEscape(err):
		h.logger.Warn("refused path outside root", "path", r.URL.Path, "error", err)
		http.Error(w, "403 Forbidden", http.StatusForbidden)
	default:
		h.logger.Warn("failed to open file", "path", r.URL.Path, "error", err)
		http.NotFound(w, r)
	}
}

// isEscape reports whether err is os.Root refusing a path that resolves
// outside the root, typically through a symlink.
func isEscape(err error) bool {
	var perr *fs.PathError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Err != nil && perr.Err.Error() == "path escapes from parent"
}

// containsDotDot reports whether v has a ".." element, splitting on both
// slash and backslash.
func containsDotDot(v string) bool {
	if !strings.Contains(v, "..") {
		return false
	}
	for _, ent := range strings.FieldsFunc(v, func(r rune) bool { return r == '/' || r == '\\' }) {
		if ent == ".." {
			return true
		}
	}
	return false
}

// prefersMarkdown reports whether an Accept header ranks text/markdown
// above text/html.
func prefersMarkdown(accept string) bool {
	if accept == "" {
		return false
	}
	md, html := -1.0, -1.0
	for _, part := range strings.Split(accept, ",") {
		mtype, q := parseAcceptPart(part)
		switch mtype {
		case "text/markdown":
			md = max(md, q)
		case "text/html", "text/*", "*/*":
			html = max(html, q)
		}
	}
	return md > 0 && md > html
}

func parseAcceptPart(part string) (string, float64) {
	fields := strings.Split(part, ";")
	mtype := strings.ToLower(strings.TrimSpace(fields[0]))
	q := 1.0
	for _, param := range fields[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(k) != "q" {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			q = f
		}
	}
	return mtype, q
}

// String describes the handler for startup logs.
func (h *Handler) String() string {
	return fmt.Sprintf("fileserver(root=%s, types=%d, listing=%t)", h.root.Name(), h.types.Len(), h.listing)
}
