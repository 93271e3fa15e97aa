// Package subdomain validates and checks availability of the label a
// submitter picks for their hosted site.
package subdomain

import (
	"context"
	"strings"
)

type Availability string

const (
	Available Availability = "available"
	Taken     Availability = "taken"
	Reserved  Availability = "reserved"
	TooShort  Availability = "too_short"
)

// MinLength mirrors the form-side minimum; shorter labels are rejected
// before any store access.
const MinLength = 3

var reserved = map[string]struct{}{
	"admin": {},
	"root":  {},
	"test":  {},
	"blog":  {},
	"api":   {},
	"shop":  {},
	"neka":  {},
	"www":   {},
}

// Lookup answers whether any request, of any status, already holds a label.
type Lookup interface {
	SubdomainExists(ctx context.Context, label string) (bool, error)
}

type Allocator struct {
	lookup Lookup
}

func NewAllocator(lookup Lookup) *Allocator {
	return &Allocator{lookup: lookup}
}

// Normalize lowercases the label and strips everything outside [a-z0-9-].
func Normalize(label string) string {
	lowered := strings.ToLower(strings.TrimSpace(label))
	var b strings.Builder
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Check reports availability for an already-normalized label. Reserved and
// too-short labels never reach the store.
func (a *Allocator) Check(ctx context.Context, label string) (Availability, error) {
	if len(label) < MinLength {
		return TooShort, nil
	}
	if _, ok := reserved[label]; ok {
		return Reserved, nil
	}
	exists, err := a.lookup.SubdomainExists(ctx, label)
	if err != nil {
		return "", err
	}
	if exists {
		return Taken, nil
	}
	return Available, nil
}
