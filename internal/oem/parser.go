package oem

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// element is a generic XML node used for blocks the service passes through
// without interpreting.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []element  `xml:",any"`
}

type document struct {
	XMLName xml.Name `xml:"ndm"`
	OEM     *struct {
		Header   element   `xml:"header"`
		Segments []segment `xml:"body>segment"`
	} `xml:"oem"`
}

type segment struct {
	Metadata element `xml:"metadata"`
	Data     struct {
		Comments     []string         `xml:"COMMENT"`
		StateVectors []rawStateVector `xml:"stateVector"`
	} `xml:"data"`
}

type rawStateVector struct {
	Epoch *string `xml:"EPOCH"`
	X     *string `xml:"X"`
	Y     *string `xml:"Y"`
	Z     *string `xml:"Z"`
	XDot  *string `xml:"X_DOT"`
	YDot  *string `xml:"Y_DOT"`
	ZDot  *string `xml:"Z_DOT"`
}

var errMissing = errors.New("element missing")

// ParseBytes is Parse over an in-memory payload.
func ParseBytes(raw []byte) (*Dataset, error) {
	return Parse(bytes.NewReader(raw))
}

// Parse decodes a CCSDS OEM XML document (ndm>oem>body>segment) into a
// Dataset. State vectors from every segment are concatenated in document
// order; metadata is taken from the first segment. Any missing or malformed
// state vector element fails the whole document with a *ParseError.
func Parse(r io.Reader) (*Dataset, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Index: -1, Field: "ndm", Err: err}
	}
	if doc.OEM == nil {
		return nil, &ParseError{Index: -1, Field: "oem", Err: errMissing}
	}
	if len(doc.OEM.Segments) == 0 {
		return nil, &ParseError{Index: -1, Field: "segment", Err: errMissing}
	}

	ds := &Dataset{
		Header:       toBlock(doc.OEM.Header.Children),
		Metadata:     toBlock(doc.OEM.Segments[0].Metadata.Children),
		Comments:     []string{},
		StateVectors: []StateVector{},
	}

	for _, seg := range doc.OEM.Segments {
		for _, c := range seg.Data.Comments {
			ds.Comments = append(ds.Comments, strings.TrimSpace(c))
		}
		for _, raw := range seg.Data.StateVectors {
			sv, err := raw.decode(len(ds.StateVectors))
			if err != nil {
				return nil, err
			}
			ds.StateVectors = append(ds.StateVectors, sv)
		}
	}

	return ds, nil
}

// component binds a raw vector element to the field it decodes into.
type component struct {
	name string
	raw  *string
	dst  *float64
}

func (r rawStateVector) decode(idx int) (StateVector, error) {
	if r.Epoch == nil {
		return StateVector{}, &ParseError{Index: idx, Field: "EPOCH", Err: errMissing}
	}
	epoch := strings.TrimSpace(*r.Epoch)
	if _, err := ParseEpoch(epoch); err != nil {
		return StateVector{}, &ParseError{Index: idx, Field: "EPOCH", Err: err}
	}

	var sv StateVector
	sv.Epoch = epoch
	components := []component{
		{"X", r.X, &sv.Position.X},
		{"Y", r.Y, &sv.Position.Y},
		{"Z", r.Z, &sv.Position.Z},
		{"X_DOT", r.XDot, &sv.Velocity.X},
		{"Y_DOT", r.YDot, &sv.Velocity.Y},
		{"Z_DOT", r.ZDot, &sv.Velocity.Z},
	}

	for _, c := range components {
		if c.raw == nil {
			return StateVector{}, &ParseError{Index: idx, Field: c.name, Err: errMissing}
		}
		v, err := parseComponent(*c.raw)
		if err != nil {
			return StateVector{}, &ParseError{Index: idx, Field: c.name, Err: err}
		}
		*c.dst = v
	}

	return sv, nil
}

func parseComponent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func toBlock(elems []element) Block {
	if len(elems) == 0 {
		return Block{}
	}
	b := make(Block, 0, len(elems))
	for _, e := range elems {
		f := Field{
			Name:  e.XMLName.Local,
			Value: strings.TrimSpace(e.Text),
		}
		if len(e.Attrs) > 0 {
			f.Attrs = make(map[string]string, len(e.Attrs))
			for _, a := range e.Attrs {
				f.Attrs[a.Name.Local] = a.Value
			}
		}
		if len(e.Children) > 0 {
			f.Children = toBlock(e.Children)
		}
		b = append(b, f)
	}
	return b
}
