package identity

import (
	"encoding/json"
	"regexp"
	"sort"
)

var (
	postURLPattern      = regexp.MustCompile(`(?i)https?://(?:www\.|mobile\.)?(?:x|twitter)\.com/[A-Za-z0-9_]{1,15}/status(?:es)?/(\d+)`)
	communityURLPattern = regexp.MustCompile(`(?i)https?://(?:www\.|mobile\.)?(?:x|twitter)\.com/i/communities/(\d+)`)
)

// References are social links found in coin metadata, deduplicated.
type References struct {
	PostIDs      []string
	CommunityIDs []string
}

// Empty reports whether no reference was found.
func (r References) Empty() bool {
	return len(r.PostIDs) == 0 && len(r.CommunityIDs) == 0
}

func (r *References) scan(s string) {
	for _, m := range postURLPattern.FindAllStringSubmatch(s, -1) {
		r.PostIDs = appendUnique(r.PostIDs, m[1])
	}
	for _, m := range communityURLPattern.FindAllStringSubmatch(s, -1) {
		r.CommunityIDs = appendUnique(r.CommunityIDs, m[1])
	}
}

func (r *References) merge(o References) {
	for _, id := range o.PostIDs {
		r.PostIDs = appendUnique(r.PostIDs, id)
	}
	for _, id := range o.CommunityIDs {
		r.CommunityIDs = appendUnique(r.CommunityIDs, id)
	}
}

// ExtractReferences walks every string value of a JSON document.
// A document that is not valid JSON is scanned as plain text.
func ExtractReferences(doc []byte) References {
	var refs References
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		refs.scan(string(doc))
		return refs
	}
	walkStrings(v, refs.scan)
	return refs
}

// ExtractFromStrings scans plain strings such as record fields.
func ExtractFromStrings(values ...string) References {
	var refs References
	for _, s := range values {
		refs.scan(s)
	}
	return refs
}

func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case []any:
		for _, e := range t {
			walkStrings(e, fn)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkStrings(t[k], fn)
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}
