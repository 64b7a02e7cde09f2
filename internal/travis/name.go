package travis

import (
	"fmt"
	"strconv"
	"strings"
)

// Name is a decomposed block name. "git.3" has Group "git" and Seq 3,
// "git.checkout" has Group "git" and Label "checkout", "install" has only a
// Group.
type Name struct {
	Group string
	Seq   int
	Label string
}

// ParseName splits name on its last dot. Only a positive decimal suffix is a
// sequence number.
func ParseName(name string) (Name, error) {
	if name == "" {
		return Name{}, fmt.Errorf("empty block name")
	}
	group, suffix, found := cutLast(name, ".")
	if !found {
		return Name{Group: name}, nil
	}
	if group == "" || suffix == "" {
		return Name{}, fmt.Errorf("malformed block name %q", name)
	}
	if suffix == "0" {
		return Name{}, fmt.Errorf("block name %q: sequence numbers start at 1", name)
	}
	// "git.03" does not recompose to itself as a number, so it stays a label
	if !isDigits(suffix) || suffix[0] == '0' {
		return Name{Group: group, Label: suffix}, nil
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return Name{}, fmt.Errorf("block name %q: %w", name, err)
	}
	return Name{Group: group, Seq: seq}, nil
}

// String recomposes the name.
func (n Name) String() string {
	switch {
	case n.Seq > 0:
		return n.Group + "." + strconv.Itoa(n.Seq)
	case n.Label != "":
		return n.Group + "." + n.Label
	default:
		return n.Group
	}
}

// Numbered reports whether the name carries a sequence number.
func (n Name) Numbered() bool { return n.Seq > 0 }

// Key is the store key: numbered siblings share their group's key, every
// other name is its own key.
func (n Name) Key() string {
	if n.Seq > 0 {
		return n.Group
	}
	return n.String()
}

// Suffix returns the sequence number or label as a string, or "" when the
// name has neither.
func (n Name) Suffix() string {
	if n.Seq > 0 {
		return strconv.Itoa(n.Seq)
	}
	return n.Label
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
