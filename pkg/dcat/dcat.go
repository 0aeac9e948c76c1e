// Package dcat traverses DCAT catalog payloads and ODRL policy fragments
// returned by connector control planes. A catalog is an arbitrary
// JSON-LD document decoded into map[string]any; this package never
// assumes a fixed Go struct for it since the same property can appear
// compacted or expanded depending on the connector's `@context`.
package dcat

import (
	"encoding/json"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

const (
	datasetKey       = "dcat:dataset"
	odrlHasPolicyKey = "odrl:hasPolicy"
	idKey            = "@id"
	typeKey          = "@type"
	dctTypeCompact   = "dct:type"
	dctTypeExpanded  = "http://purl.org/dc/terms/type"
)

// Datasets returns the dcat:dataset entries of a catalog, normalizing the
// single-dataset-as-object shape some connectors use into a one-element
// slice.
func Datasets(catalog map[string]any) []map[string]any {
	raw, ok := catalog[datasetKey]
	if !ok || raw == nil {
		return nil
	}

	switch v := raw.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if ds, ok := item.(map[string]any); ok {
				out = append(out, ds)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	default:
		return nil
	}
}

// IsDTRAsset reports whether a dataset's dct:type (compact or expanded
// JSON-LD form) matches dctType. Both the object-with-@id shape and the
// bare-string shape are accepted.
func IsDTRAsset(dataset map[string]any, dctType string) bool {
	return matchesType(dataset[dctTypeCompact], dctType) || matchesType(dataset[dctTypeExpanded], dctType)
}

func matchesType(value any, dctType string) bool {
	switch v := value.(type) {
	case string:
		return v == dctType
	case map[string]any:
		id, _ := v[idKey].(string)
		return id == dctType
	default:
		return false
	}
}

// ExtractPolicies reads odrl:hasPolicy from a dataset, normalizes it to a
// slice, and strips @id/@type from each entry so that two semantically
// equal policies from different connectors compare and serialize equal.
// A policy that is just a bare string (a policy ID reference) is kept as
// a single-key map under "@id" so the return type stays uniform.
func ExtractPolicies(dataset map[string]any) []types.Policy {
	raw, ok := dataset[odrlHasPolicyKey]
	if !ok || raw == nil {
		return nil
	}

	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	default:
		entries = []any{v}
	}

	policies := make([]types.Policy, 0, len(entries))
	for _, entry := range entries {
		switch v := entry.(type) {
		case map[string]any:
			clean := make(types.Policy, len(v))
			for k, val := range v {
				if k == idKey || k == typeKey {
					continue
				}
				clean[k] = val
			}
			if len(clean) > 0 {
				policies = append(policies, clean)
			}
		case string:
			policies = append(policies, types.Policy{idKey: v})
		}
	}

	return policies
}

// Checksum returns the SHA3-256 hex digest of a canonical JSON encoding
// of v (object keys sorted), used to key negotiated EDRs by the exact
// filter expression or policy set that produced them. Equal policy sets
// and filter expressions MUST hash identically regardless of map
// iteration order, hence the explicit canonicalization pass.
func Checksum(v any) string {
	canon := canonicalize(v)
	b, _ := json.Marshal(canon)
	sum := sha3.Sum256(b)
	return hexEncode(sum[:])
}

// canonicalize recursively converts Policy values and policy slices into
// plain map[string]any/[]any, whose keys encoding/json writes in sorted
// order, so Checksum produces a stable byte sequence for any input shape
// this package passes to it. Slice order is kept as given.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = canonicalize(e)
		}
		return out
	case types.Policy:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = canonicalize(e)
		}
		return out
	case []types.Policy:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return val
	}
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

// SortedKeys is a small helper used by callers (e.g. pkg/negotiation) that
// need a deterministic iteration order over a Policy map without pulling
// in a canonicalizing encode.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
