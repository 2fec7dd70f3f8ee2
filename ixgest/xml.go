package ixgest

import (
	"io"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

// ParseDocument parses a whole feed. A document that is not well-formed XML
// or has no root element is ErrInvalidFeed.
func ParseDocument(r io.Reader) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidFeed, "malformed XML: %v", err)
	}
	if Root(doc) == nil {
		return nil, errors.Wrap(errors.ErrInvalidFeed, "document has no root element")
	}
	return doc, nil
}

// Root returns the document element.
func Root(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// RootName returns the local name of the document element.
func RootName(doc *xmlquery.Node) string {
	if root := Root(doc); root != nil {
		return root.Data
	}
	return ""
}

// Require returns the nodes at path below n, or ErrInvalidFeed when there
// are none. Adapters call it for the elements a feed cannot lack.
func Require(n *xmlquery.Node, path string) ([]*xmlquery.Node, error) {
	nodes := All(n, path)
	if len(nodes) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidFeed, "missing required element %s", path)
	}
	return nodes, nil
}

// All returns the nodes at path below n. Paths are written with plain
// element names ("Listings/Listing", "Media/Item[@medium='image']") and match
// by local name, so namespaced and prefixed feeds use the same paths.
func All(n *xmlquery.Node, path string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	return xmlquery.QuerySelectorAll(n, compile(path))
}

// One returns the first node at path below n, or nil.
func One(n *xmlquery.Node, path string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	return xmlquery.QuerySelector(n, compile(path))
}

// Text returns the trimmed text at path below n, or "".
func Text(n *xmlquery.Node, path string) string {
	if found := One(n, path); found != nil {
		return strings.TrimSpace(found.InnerText())
	}
	return ""
}

// Texts returns the non-empty trimmed texts of every node at path below n.
func Texts(n *xmlquery.Node, path string) []string {
	var out []string
	for _, found := range All(n, path) {
		if s := strings.TrimSpace(found.InnerText()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Attr returns the trimmed value of the attribute with the given local name.
func Attr(n *xmlquery.Node, name string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// FirstText returns the first non-empty Text among paths. Feeds of the same
// provider drift between element names across versions.
func FirstText(n *xmlquery.Node, paths ...string) string {
	for _, p := range paths {
		if s := Text(n, p); s != "" {
			return s
		}
	}
	return ""
}

var compiled sync.Map // path -> *xpath.Expr

func compile(path string) *xpath.Expr {
	if e, ok := compiled.Load(path); ok {
		return e.(*xpath.Expr)
	}
	e := xpath.MustCompile(localPath(path))
	compiled.Store(path, e)
	return e
}

// localPath rewrites "A/B[@x='1']" as "*[local-name()='A']/*[local-name()='B'][@x='1']".
func localPath(path string) string {
	prefix := ""
	switch {
	case strings.HasPrefix(path, "//"):
		prefix, path = "//", path[2:]
	case strings.HasPrefix(path, "/"):
		prefix, path = "/", path[1:]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" || seg == "." || seg == ".." || strings.HasPrefix(seg, "@") {
			continue
		}
		name, pred := seg, ""
		if j := strings.IndexByte(seg, '['); j >= 0 {
			name, pred = seg[:j], seg[j:]
		}
		segments[i] = "*[local-name()='" + name + "']" + pred
	}
	return prefix + strings.Join(segments, "/")
}
