// Package policy decodes password policy descriptors, merges per-account
// overrides with the process-wide defaults and evaluates the consequences
// of an authentication attempt.
package policy

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/credengine/internal/common"
)

// Option is one key=value token.
type Option struct {
	Key   string
	Value string
}

// Descriptor is an ordered list of policy options as stored in the
// PasswordPolicyOptions attribute.
type Descriptor []Option

type xmlPolicy struct {
	XMLName xml.Name `xml:"policy"`
	Body    string   `xml:",chardata"`
}

// Decode parses "<policy>k=v k=v</policy>". Surrounding whitespace and an
// empty string decode to an empty descriptor.
func Decode(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, nil
	}
	var p xmlPolicy
	if err := xml.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("%w: policy: %w", common.ErrInvalidInput, err)
	}
	return ParseTokens(p.Body)
}

// ParseTokens parses a space-delimited key=value list.
func ParseTokens(s string) (Descriptor, error) {
	d := Descriptor{}
	for _, tok := range strings.Fields(s) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: policy token %q", common.ErrInvalidInput, tok)
		}
		d = d.Set(k, v)
	}
	return d, nil
}

// Tokens renders the space-delimited key=value list.
func (d Descriptor) Tokens() string {
	parts := make([]string, len(d))
	for i, o := range d {
		parts[i] = o.Key + "=" + o.Value
	}
	return strings.Join(parts, " ")
}

// Encode renders the XML-wrapped attribute value.
func (d Descriptor) Encode() string {
	out, err := xml.Marshal(xmlPolicy{Body: d.Tokens()})
	if err != nil {
		// chardata of a plain string always marshals
		panic(err)
	}
	return string(out)
}

// Get returns the value of key.
func (d Descriptor) Get(key string) (string, bool) {
	for _, o := range d {
		if o.Key == key {
			return o.Value, true
		}
	}
	return "", false
}

// Set returns d with key set to value, replacing in place or appending.
func (d Descriptor) Set(key, value string) Descriptor {
	for i, o := range d {
		if o.Key == key {
			out := d.Clone()
			out[i].Value = value
			return out
		}
	}
	return append(d.Clone(), Option{Key: key, Value: value})
}

// Delete returns d without key.
func (d Descriptor) Delete(key string) Descriptor {
	out := make(Descriptor, 0, len(d))
	for _, o := range d {
		if o.Key != key {
			out = append(out, o)
		}
	}
	return out
}

// Clone returns an independent copy.
func (d Descriptor) Clone() Descriptor {
	return append(Descriptor{}, d...)
}

// Merge overlays over on d: keys of over win, keys only in d keep their
// position, new keys are appended in over's order.
func (d Descriptor) Merge(over Descriptor) Descriptor {
	out := d.Clone()
	for _, o := range over {
		out = out.Set(o.Key, o.Value)
	}
	return out
}
