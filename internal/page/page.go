// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package page composes snippet attachments and splices them into HTML
// response bodies. Attachments carry explicit regions and weights so the
// data-layer bootstrap always precedes the loader script in the document
// head, and the noscript fallback lands at the top of the body.
package page

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cardinalhq/tagrunner/internal/snippet"
)

// Region is an attachment point in the page.
type Region int

const (
	// RegionHead attaches before the closing head tag.
	RegionHead Region = iota
	// RegionBodyTop attaches immediately after the opening body tag.
	RegionBodyTop
)

// Attachment is one piece of markup destined for a page region.
// Attachments in the same region render in ascending weight order.
type Attachment struct {
	Region Region
	Weight int
	Markup []byte
}

// Attachment weights. The data layer must be declared before the loader
// script consumes it.
const (
	weightDataLayer = -10
	weightScript    = -9
	weightNoScript  = -10
)

// Compose builds the attachments for one inserted response. Inline mode
// embeds the cached artifact bytes; file mode references the public
// artifact URIs. Missing or unreadable artifacts are omitted silently.
func Compose(cfg snippet.Config, cache *snippet.Cache) []Attachment {
	var atts []Attachment

	if cfg.IncludeFile {
		atts = append(atts,
			Attachment{RegionHead, weightDataLayer, scriptSrc(cache.URI(snippet.KindDataLayer))},
			Attachment{RegionHead, weightScript, scriptSrc(cache.URI(snippet.KindScript))},
		)
	} else {
		if body, ok := cache.Fetch(snippet.KindDataLayer); ok {
			atts = append(atts, Attachment{RegionHead, weightDataLayer, scriptInline(body)})
		}
		if body, ok := cache.Fetch(snippet.KindScript); ok {
			atts = append(atts, Attachment{RegionHead, weightScript, scriptInline(body)})
		}
	}

	// The noscript fallback is markup, not script; it is always inlined.
	if body, ok := cache.Fetch(snippet.KindNoScript); ok {
		atts = append(atts, Attachment{RegionBodyTop, weightNoScript, body})
	}

	sort.SliceStable(atts, func(i, j int) bool {
		if atts[i].Region != atts[j].Region {
			return atts[i].Region < atts[j].Region
		}
		return atts[i].Weight < atts[j].Weight
	})
	return atts
}

func scriptInline(body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("<script>")
	buf.Write(bytes.TrimRight(body, "\n"))
	buf.WriteString("</script>\n")
	return buf.Bytes()
}

func scriptSrc(uri string) []byte {
	return []byte(fmt.Sprintf("<script src=%q></script>\n", uri))
}

var (
	headClose = []byte("</head>")
	bodyOpen  = []byte("<body")
)

// Inject splices the attachments into body at their regions, preserving
// attachment order. Bodies without the relevant tag are returned with
// that region's attachments dropped; a body with neither tag comes back
// unmodified.
func Inject(body []byte, atts []Attachment) []byte {
	var head, bodyTop bytes.Buffer
	for _, a := range atts {
		switch a.Region {
		case RegionHead:
			head.Write(a.Markup)
		case RegionBodyTop:
			bodyTop.Write(a.Markup)
		}
	}

	out := body
	if head.Len() > 0 {
		if i := indexFold(out, headClose); i >= 0 {
			out = splice(out, i, head.Bytes())
		}
	}
	if bodyTop.Len() > 0 {
		if i := bodyOpenEnd(out); i >= 0 {
			out = splice(out, i, bodyTop.Bytes())
		}
	}
	return out
}

// bodyOpenEnd returns the index just past the opening body tag's '>', or
// -1 when no body tag exists.
func bodyOpenEnd(b []byte) int {
	i := indexFold(b, bodyOpen)
	if i < 0 {
		return -1
	}
	rest := b[i+len(bodyOpen):]
	// Reject tags that merely start with "body".
	if len(rest) == 0 || (rest[0] != '>' && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n' && rest[0] != '\r') {
		return -1
	}
	j := bytes.IndexByte(rest, '>')
	if j < 0 {
		return -1
	}
	return i + len(bodyOpen) + j + 1
}

// indexFold is a case-insensitive bytes.Index for ASCII needles.
func indexFold(haystack, needle []byte) int {
	return bytes.Index(bytes.ToLower(haystack), bytes.ToLower(needle))
}

func splice(b []byte, at int, ins []byte) []byte {
	out := make([]byte, 0, len(b)+len(ins))
	out = append(out, b[:at]...)
	out = append(out, ins...)
	out = append(out, b[at:]...)
	return out
}
