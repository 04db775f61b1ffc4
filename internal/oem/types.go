package oem

import (
	"bytes"
	"encoding/json"
	"time"
)

// Vector3 is a Cartesian triple in the ECI frame.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// StateVector is a single ephemeris sample.
type StateVector struct {
	Epoch    string  `json:"epoch"`
	Position Vector3 `json:"position"` // km
	Velocity Vector3 `json:"velocity"` // km/s
}

// Field is one element of an opaque header or metadata block.
type Field struct {
	Name     string            `json:"name"`
	Value    string            `json:"value,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children Block             `json:"children,omitempty"`
}

// Block is an ordered list of elements copied verbatim from the feed.
type Block []Field

// MarshalJSON renders the block as a JSON object keyed by element name,
// keeping document order. Repeated names collapse into an array.
func (b Block) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}

	order := make([]string, 0, len(b))
	grouped := make(map[string][]any, len(b))
	for _, f := range b {
		if _, ok := grouped[f.Name]; !ok {
			order = append(order, f.Name)
		}
		grouped[f.Name] = append(grouped[f.Name], f.jsonValue())
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v any = grouped[name]
		if vals := grouped[name]; len(vals) == 1 {
			v = vals[0]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value of the first top-level field with the given name.
func (b Block) Get(name string) (string, bool) {
	for _, f := range b {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (f Field) jsonValue() any {
	switch {
	case len(f.Children) > 0 && len(f.Attrs) > 0:
		return attributedBlock{attrs: f.Attrs, children: f.Children}
	case len(f.Children) > 0:
		return f.Children
	case len(f.Attrs) > 0:
		m := prefixedAttrs(f.Attrs)
		m["#text"] = f.Value
		return m
	}
	return f.Value
}

func prefixedAttrs(attrs map[string]string) map[string]string {
	m := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		m["@"+k] = v
	}
	return m
}

// attributedBlock is an element with both attributes and child elements.
// The "@" keys come first, followed by the children in document order.
type attributedBlock struct {
	attrs    map[string]string
	children Block
}

func (a attributedBlock) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(prefixedAttrs(a.attrs))
	if err != nil {
		return nil, err
	}
	body, err := a.children.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 {
		return head, nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	return append(out, body[1:]...), nil
}

// Dataset is an immutable snapshot of a parsed ephemeris document.
// Values published through a Store must not be mutated.
type Dataset struct {
	Header       Block         `json:"header"`
	Metadata     Block         `json:"metadata"`
	Comments     []string      `json:"comments"`
	StateVectors []StateVector `json:"state_vectors"`

	Source    string    `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// withoutStateVectors returns a shallow copy sharing every block except the
// sample sequence, which is replaced by an empty slice.
func (d *Dataset) withoutStateVectors() *Dataset {
	cp := *d
	cp.StateVectors = []StateVector{}
	return &cp
}
