// Package urlnorm canonicalizes URLs so the crawler can compare and
// de-duplicate them.
//
// # Canonical form
//
// A canonical URL is absolute. Its scheme and authority come from the URL
// itself or, when missing, from the base it is resolved against. Its path is
// resolved against the base path (dot segments removed) and then
// percent-decoded once. Query and fragment are copied verbatim from the
// URL being normalized and are never inherited from the base.
//
// # Depth
//
// Depth is derived from the path alone: the number of "/"-separated
// segments minus one. It is not the number of hops from the seed.
package urlnorm
