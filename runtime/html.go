package runtime

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// findElements returns the elements named name whose attributes equal attrs.
// A "class" filter also matches a single class out of a space-separated list.
func findElements(root *goquery.Selection, name string, attrs map[string]string) *goquery.Selection {
	return root.Find(name).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasAttrs(s, attrs)
	})
}

// findElement returns the first matching element, or nil.
func findElement(root *goquery.Selection, name string, attrs map[string]string) *goquery.Selection {
	found := findElements(root, name, attrs)
	if found.Length() == 0 {
		return nil
	}
	return found.First()
}

func hasAttrs(s *goquery.Selection, attrs map[string]string) bool {
	for name, want := range attrs {
		got, ok := s.Attr(name)
		if !ok {
			return false
		}
		if got == want {
			continue
		}
		if name == "class" && containsField(got, want) {
			continue
		}
		return false
	}
	return true
}

func containsField(list, item string) bool {
	for _, f := range strings.Fields(list) {
		if f == item {
			return true
		}
	}
	return false
}

// formData extracts the submitted name/value pairs of a form's inputs and selects.
// Unnamed inputs, unchecked checkboxes and radios, and selects without a
// selected option are skipped; a missing value attribute yields "".
func formData(form *goquery.Selection) map[string]string {
	data := make(map[string]string)

	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		if name == "" {
			return
		}
		kind := strings.ToLower(in.AttrOr("type", ""))
		if kind == "checkbox" || kind == "radio" {
			if _, checked := in.Attr("checked"); !checked {
				return
			}
		}
		data[name] = in.AttrOr("value", "")
	})

	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		if name == "" {
			return
		}
		option := sel.Find("option[selected]").First()
		if option.Length() == 0 {
			return
		}
		data[name] = option.AttrOr("value", "")
	})

	return data
}

// describeAttrs renders attribute filters deterministically for error messages.
func describeAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
