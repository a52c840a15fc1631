// Package sanitize maps free-form source column labels onto canonical
// identifiers that are safe to use as storage-engine column names.
//
// Canonical form: lower-case, accent-folded, non-alphanumeric runs collapsed
// to a single underscore, no leading/trailing underscore, never empty. The
// mapping is deterministic: the same label list always yields the same
// mapping.
//
// Two distinct labels can canonicalize to the same name ("Product Name" and
// "product-name" both become "product_name"). That is never merged silently;
// the caller chooses a CollisionPolicy.
package sanitize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FallbackName is substituted when a label sanitizes to nothing at all
// (e.g. a label made only of punctuation).
const FallbackName = "col"

// CollisionPolicy decides what happens when two labels map to one name.
type CollisionPolicy string

const (
	// CollisionFail aborts with a *CollisionError. This is the default:
	// a collision usually means the source schema changed underneath us.
	CollisionFail CollisionPolicy = "fail"

	// CollisionSuffix keeps the first label on the bare name and renames
	// later ones with a numeric suffix (_2, _3, ...) in label order.
	CollisionSuffix CollisionPolicy = "suffix"
)

// CollisionError reports every original label that mapped to one canonical
// name under CollisionFail.
type CollisionError struct {
	Name   string
	Labels []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("sanitize: columns %q all map to %q", e.Labels, e.Name)
}

// Mapping is the total label -> canonical-name mapping for one source schema.
type Mapping struct {
	byOriginal map[string]string

	// Names holds the canonical names in source label order.
	Names []string
}

// Canonical returns the canonical name for an original label.
// The mapping is total over the labels it was built from; unknown labels
// return "".
//
// Label-keyed lookup cannot distinguish duplicate identical labels: under
// CollisionSuffix both occurrences share this one entry, which holds the
// last (suffixed) assignment. Callers that must keep duplicate labels apart
// use the positional Names slice instead.
func (m *Mapping) Canonical(label string) string {
	return m.byOriginal[label]
}

// AsMap returns a copy of the label -> canonical mapping. It carries the
// same duplicate-label caveat as Canonical.
func (m *Mapping) AsMap() map[string]string {
	out := make(map[string]string, len(m.byOriginal))
	for k, v := range m.byOriginal {
		out[k] = v
	}
	return out
}

// Sanitize builds the canonical mapping for a full label list.
//
// Errors:
//   - *CollisionError when policy is CollisionFail and two labels collide.
//   - An error for an unknown policy.
//
// Edge cases:
//   - Duplicate identical labels are a collision too: the source header
//     itself is ambiguous and the caller must decide.
//   - Under CollisionSuffix a suffixed name that would itself collide with a
//     later base name is bumped until free, still deterministically.
func Sanitize(labels []string, policy CollisionPolicy) (*Mapping, error) {
	switch policy {
	case "":
		policy = CollisionFail
	case CollisionFail, CollisionSuffix:
	default:
		return nil, fmt.Errorf("sanitize: unknown collision policy %q", policy)
	}

	m := &Mapping{
		byOriginal: make(map[string]string, len(labels)),
		Names:      make([]string, 0, len(labels)),
	}

	// labelsByName tracks which original labels claimed each canonical name,
	// in label order, so CollisionFail can report all offenders.
	labelsByName := make(map[string][]string, len(labels))
	taken := make(map[string]bool, len(labels))

	for _, label := range labels {
		name := Name(label)
		labelsByName[name] = append(labelsByName[name], label)

		if taken[name] {
			if policy == CollisionFail {
				return nil, &CollisionError{Name: name, Labels: labelsByName[name]}
			}
			name = nextFree(name, taken)
		}

		taken[name] = true
		m.byOriginal[label] = name
		m.Names = append(m.Names, name)
	}

	return m, nil
}

// Name canonicalizes a single label.
func Name(label string) string {
	s := foldAccents(strings.TrimSpace(label))
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSep := true // swallow leading separators
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		// '/', '-', '.' and every other non-alphanumeric rune collapse to
		// a single underscore.
		if !lastSep {
			b.WriteByte('_')
			lastSep = true
		}
	}

	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return FallbackName
	}
	return out
}

// nextFree appends the smallest numeric suffix (starting at _2) that does
// not clash with an already-assigned name.
func nextFree(name string, taken map[string]bool) string {
	for i := 2; ; i++ {
		cand := name + "_" + strconv.Itoa(i)
		if !taken[cand] {
			return cand
		}
	}
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents strips combining marks so accented letters survive as their
// base letter instead of vanishing ("Súbmitted Vía" -> "Submitted Via").
func foldAccents(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}
