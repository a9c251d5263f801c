package driver

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fakeElement adapts a single-node goquery.Selection to the Element
// interface.
type fakeElement struct {
	sel *goquery.Selection
}

func newFakeElement(sel *goquery.Selection) Element {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	return &fakeElement{sel: sel.Eq(0)}
}

func (e *fakeElement) TagName() string {
	return strings.ToLower(goquery.NodeName(e.sel))
}

func (e *fakeElement) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e *fakeElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *fakeElement) Attrs() map[string]string {
	out := make(map[string]string)
	if node := e.sel.Get(0); node != nil {
		for _, a := range node.Attr {
			out[a.Key] = a.Val
		}
	}
	return out
}

func (e *fakeElement) ClassTokens() []string {
	class, ok := e.sel.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(class)
}

func (e *fakeElement) Visible() bool {
	if _, hidden := e.sel.Attr("hidden"); hidden {
		return false
	}
	style, ok := e.sel.Attr("style")
	if ok {
		normalized := strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(normalized, "display:none") || strings.Contains(normalized, "visibility:hidden") {
			return false
		}
	}
	return true
}

func (e *fakeElement) Interactable() bool {
	if !e.Visible() {
		return false
	}
	if _, disabled := e.sel.Attr("disabled"); disabled {
		return false
	}
	switch e.TagName() {
	case "a", "button", "input", "select", "textarea":
		return true
	default:
		_, hasTabIndex := e.sel.Attr("tabindex")
		_, hasOnClick := e.sel.Attr("onclick")
		return hasTabIndex || hasOnClick
	}
}

func (e *fakeElement) Path() string {
	var parts []string
	cur := e.sel
	for cur.Length() > 0 {
		tag := strings.ToLower(goquery.NodeName(cur))
		if tag == "" || tag == "#document" {
			break
		}
		idx := cur.PrevAllFiltered(tag).Length() + 1
		parts = append([]string{fmt.Sprintf("%s[%d]", tag, idx)}, parts...)
		parent := cur.Parent()
		if parent.Length() == 0 {
			break
		}
		cur = parent
	}
	return "/" + strings.Join(parts, "/")
}

func (e *fakeElement) Children() []Element {
	var out []Element
	e.sel.Children().Each(func(_ int, child *goquery.Selection) {
		out = append(out, newFakeElement(child))
	})
	return out
}

func (e *fakeElement) Parent() Element {
	parent := e.sel.Parent()
	if parent.Length() == 0 {
		return nil
	}
	return newFakeElement(parent)
}
