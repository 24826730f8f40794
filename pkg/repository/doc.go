// Package repository turns raw repository configuration into canonical
// descriptors.
//
// Each descriptor belongs to a group (cookbooks or data bags). Values are
// merged per descriptor with explicit options first, then group defaults,
// then built-in defaults. Normalization is pure: it touches neither the
// filesystem nor the network, so a bad descriptor fails before any host is
// contacted.
package repository
