package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
)

// Signature identifies a line item by product and option selections. Two
// items with the same product and the same selections in any order share a
// signature. Each component is length-prefixed so no pair of distinct
// selections can serialize to the same bytes.
func Signature(item LineItem) string {
	opts := slices.Clone(item.Options)
	slices.SortFunc(opts, func(a, b OptionSelection) int {
		if c := strings.Compare(a.GroupID, b.GroupID); c != 0 {
			return c
		}
		if c := strings.Compare(a.ChoiceID, b.ChoiceID); c != 0 {
			return c
		}
		return strings.Compare(a.FreeText, b.FreeText)
	})

	var b strings.Builder
	writePart(&b, item.ProductID)
	for _, o := range opts {
		writePart(&b, o.GroupID)
		writePart(&b, o.ChoiceID)
		writePart(&b, strings.TrimSpace(o.FreeText))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func writePart(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// Normalize merges items that share a signature, summing quantities. The
// first occurrence keeps its position; its memo wins unless empty.
func Normalize(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		sig := Signature(item)
		if i, ok := index[sig]; ok {
			out[i].Quantity += item.Quantity
			if out[i].Memo == "" {
				out[i].Memo = item.Memo
			}
			continue
		}
		index[sig] = len(out)
		item.Options = slices.Clone(item.Options)
		out = append(out, item)
	}
	return out
}
