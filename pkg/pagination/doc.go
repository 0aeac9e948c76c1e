/*
Package pagination implements the cursor codec and limit-distribution
math shared by ShellDiscovery's paginated shell lookup.

A page token carries per-DTR sub-cursors rather than a single global
offset, because each DTR's /lookup/shellsByAssetLink endpoint issues its
own opaque continuation token. DistributeLimit computes how many results
to request from each active DTR for a given page; IsCompatible enforces
that a cursor is only reused with the limit it was minted under, which
pkg/discovery turns into the LIMIT_MISMATCH fail-fast error.
*/
package pagination
