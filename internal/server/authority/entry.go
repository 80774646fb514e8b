// Package authority decides which mechanism governs an account's password
// and routes each request to it.
//
// An account carries an ordered list of authority entries in its
// AuthenticationAuthority attribute, each "tag;version;data". Read-class
// operations stop at the first entry whose handler supports them;
// write-class operations are broadcast to every supporting entry.
package authority

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/credengine/internal/cryptox"
)

// Tag is the closed set of authority kinds.
type Tag int

const (
	TagUnknown Tag = iota
	TagShadowHash
	TagPasswordServer
	TagKerberos
	TagDisabled
)

// Wire names of the known tags.
const (
	NameShadowHash     = "ShadowHash"
	NamePasswordServer = "ApplePasswordServer"
	NameKerberos       = "Kerberosv5"
	NameDisabled       = "DisabledUser"

	hashListPrefix = "HASHLIST:"
)

var tagNames = map[string]Tag{
	NameShadowHash:     TagShadowHash,
	NamePasswordServer: TagPasswordServer,
	NameKerberos:       TagKerberos,
	NameDisabled:       TagDisabled,
}

func (t Tag) String() string {
	for n, v := range tagNames {
		if v == t {
			return n
		}
	}
	return "Unknown"
}

// Entry is one parsed authority value. Unknown tags keep their name so the
// value is written back unchanged.
type Entry struct {
	Tag     Tag
	Name    string
	Version int
	Data    string
	// Wrapped is the entry a DisabledUser entry suspends.
	Wrapped *Entry
}

// ParseEntry decodes "tag;version;data". Data may itself contain
// semicolons. Values that do not fit the layout become Unknown entries.
func ParseEntry(s string) Entry {
	parts := strings.SplitN(s, ";", 3)
	if len(parts) < 3 {
		return Entry{Tag: TagUnknown, Name: s, Version: -1}
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil {
		return Entry{Tag: TagUnknown, Name: s, Version: -1}
	}
	e := Entry{Tag: tagNames[parts[0]], Name: parts[0], Version: version, Data: parts[2]}
	if e.Tag == TagDisabled {
		inner := ParseEntry(e.Data)
		e.Wrapped = &inner
	}
	return e
}

// String encodes the entry back into attribute form.
func (e Entry) String() string {
	if e.Version < 0 {
		return e.Name
	}
	return e.Name + ";" + strconv.Itoa(e.Version) + ";" + e.Data
}

// Disable wraps e in a DisabledUser entry. Already disabled entries are
// returned as is.
func Disable(e Entry) Entry {
	if e.Tag == TagDisabled {
		return e
	}
	inner := e
	return Entry{Tag: TagDisabled, Name: NameDisabled, Version: 1, Data: e.String(), Wrapped: &inner}
}

// Enable removes any DisabledUser wrapping.
func Enable(e Entry) Entry {
	for e.Tag == TagDisabled && e.Wrapped != nil {
		e = *e.Wrapped
	}
	return e
}

// ParseList decodes every value of the authority attribute.
func ParseList(values []string) []Entry {
	out := make([]Entry, 0, len(values))
	for _, v := range values {
		out = append(out, ParseEntry(v))
	}
	return out
}

// FormatList encodes entries for the authority attribute.
func FormatList(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}
	return out
}

// HashList returns the algorithms selected by a ShadowHash entry's
// "HASHLIST:<A,B>" data, or fallback when none is given.
func (e Entry) HashList(fallback cryptox.AlgorithmSet) (cryptox.AlgorithmSet, error) {
	if !strings.HasPrefix(e.Data, hashListPrefix) {
		return fallback, nil
	}
	list := strings.TrimPrefix(e.Data, hashListPrefix)
	list = strings.TrimSuffix(strings.TrimPrefix(list, "<"), ">")
	set, err := cryptox.ParseHashList(list)
	if err != nil {
		return 0, fmt.Errorf("authority %s: %w", e.Name, err)
	}
	return set, nil
}

// ShadowHashEntry returns a local-hashing entry, with a hash list when algs
// is non-zero.
func ShadowHashEntry(algs cryptox.AlgorithmSet) Entry {
	e := Entry{Tag: TagShadowHash, Name: NameShadowHash, Version: 1}
	if algs != 0 {
		e.Data = hashListPrefix + "<" + algs.String() + ">"
	}
	return e
}
