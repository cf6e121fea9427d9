// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package keys builds the storage keys shared by the session, lease and
// checkpoint stores.
package keys

import "strings"

const hexDigits = "0123456789ABCDEF"

// Tenant escapes a tenant id for use inside a key or a file name. Bytes
// outside [a-z0-9_-] become %XX, so distinct ids never share an encoding
// and ids differing only in case stay apart on case-insensitive filesystems.
func Tenant(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}

// Session is the key of a (tenant, platform) browser session. Platforms are
// a closed lowercase set without separators.
func Session(tenant, platform string) string {
	return Tenant(tenant) + "/" + strings.ToLower(platform)
}
