// Package staging moves repository content onto hosts.
//
// A descriptor is fetched, copied into a local staging tree with its
// exclude patterns applied, and packed into a gzip tarball. Each host then
// receives the tarball in a remote temp dir, unpacks it, and swaps the
// unpacked tree into the destination so a failure never leaves a half
// replaced destination. Local and remote scratch space is released on every
// exit path.
package staging
