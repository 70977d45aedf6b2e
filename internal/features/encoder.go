// Package features turns validated student records into fixed-length numeric
// feature vectors. The encoding (field order, categorical index maps, scaling
// statistics) is fitted once on the training partition and frozen inside a
// versioned Schema, so the same record always encodes to the same vector for
// the lifetime of a model artifact.
package features

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"edurisk-engine/internal/schema"
)

// Vector is an encoded feature vector. Its length and ordering are fixed by
// the Schema that produced it.
type Vector []float64

// UnknownCategoryError reports a categorical value that was never observed
// at training time. Predictions are rejected rather than silently imputed,
// unless the schema was fitted with an unknown bucket.
type UnknownCategoryError struct {
	Field string
	Value int
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category: field %s has value %d not seen at training time", e.Field, e.Value)
}

// fieldEncoding holds the frozen per-field parameters.
type fieldEncoding struct {
	Name string           `json:"name"`
	Kind schema.FieldKind `json:"kind"`

	// Categorical: raw code -> dense index. Unknown is the bucket index
	// for unseen codes, -1 when the bucket is disabled.
	Categories map[int]int `json:"categories,omitempty"`
	Unknown    int         `json:"unknown"`

	// Continuous: standardization statistics from the training partition.
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Schema is a fitted, versioned feature encoding. It is immutable after Fit;
// inference reuses the stored statistics so scores stay reproducible across
// requests.
type Schema struct {
	Version string          `json:"version"`
	Fields  []fieldEncoding `json:"fields"`
}

// Len returns the fixed vector length this schema produces.
func (s *Schema) Len() int { return len(s.Fields) }

// Fit derives the encoding from the training partition only: categorical
// index maps from the observed code sets, mean/std for continuous fields.
// When allowUnknown is set, every categorical field gets a dedicated bucket
// that unseen codes map to at inference time.
func Fit(records []schema.StudentRecord, allowUnknown bool) (*Schema, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit encoder on empty training partition")
	}

	specs := schema.Fields()
	s := &Schema{Fields: make([]fieldEncoding, len(specs))}

	values := make([][schema.NumFields]float64, len(records))
	for i, r := range records {
		values[i] = r.Values()
	}

	for i, spec := range specs {
		enc := fieldEncoding{Name: spec.Name, Kind: spec.Kind, Unknown: -1, Std: 1}

		switch spec.Kind {
		case schema.Categorical:
			seen := make(map[int]struct{})
			for row := range values {
				seen[int(values[row][i])] = struct{}{}
			}
			codes := make([]int, 0, len(seen))
			for c := range seen {
				codes = append(codes, c)
			}
			sort.Ints(codes)

			enc.Categories = make(map[int]int, len(codes))
			for idx, c := range codes {
				enc.Categories[c] = idx
			}
			if allowUnknown {
				enc.Unknown = len(codes)
			}

		case schema.Continuous:
			var sum, sumSq float64
			n := float64(len(values))
			for row := range values {
				v := values[row][i]
				sum += v
				sumSq += v * v
			}
			mean := sum / n
			variance := sumSq/n - mean*mean
			enc.Mean = mean
			if variance > 0 {
				enc.Std = math.Sqrt(variance)
			}
		}

		s.Fields[i] = enc
	}

	s.Version = s.fingerprint()
	return s, nil
}

// Encode maps a validated record onto this schema's feature space. The output
// length always equals Len(); an unseen categorical code fails with
// *UnknownCategoryError unless the unknown bucket was fitted.
func (s *Schema) Encode(record schema.StudentRecord) (Vector, error) {
	raw := record.Values()
	if len(raw) != len(s.Fields) {
		return nil, fmt.Errorf("record has %d attributes, schema %s expects %d", len(raw), s.Version, len(s.Fields))
	}

	vec := make(Vector, len(s.Fields))
	for i, enc := range s.Fields {
		v := raw[i]

		switch enc.Kind {
		case schema.Categorical:
			code := int(v)
			idx, ok := enc.Categories[code]
			if !ok {
				if enc.Unknown < 0 {
					return nil, &UnknownCategoryError{Field: enc.Name, Value: code}
				}
				idx = enc.Unknown
			}
			vec[i] = float64(idx)

		case schema.Continuous:
			if enc.Std > 0 {
				vec[i] = (v - enc.Mean) / enc.Std
			} else {
				vec[i] = 0
			}

		default: // Binary
			vec[i] = v
		}
	}

	return vec, nil
}

// fingerprint hashes the full encoding (names, mappings, statistics) into a
// stable version token. Any change to the feature space yields a new version.
func (s *Schema) fingerprint() string {
	h := fnv.New64a()
	for _, enc := range s.Fields {
		fmt.Fprintf(h, "%s|%d|%d|%.12g|%.12g;", enc.Name, enc.Kind, enc.Unknown, enc.Mean, enc.Std)

		codes := make([]int, 0, len(enc.Categories))
		for c := range enc.Categories {
			codes = append(codes, c)
		}
		sort.Ints(codes)
		for _, c := range codes {
			fmt.Fprintf(h, "%d:%d,", c, enc.Categories[c])
		}
	}
	return fmt.Sprintf("fs-%016x", h.Sum64())
}
