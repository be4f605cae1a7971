/*
Package microkernel provides a versioned, content-addressed store for trees of nodes and properties.

Each commit applies a diff to the tree of some base revision and yields a new
revision. Nodes are immutable and identified by the hash of their content, so
unchanged subtrees are shared by all revisions. Readers holding a revision see
a stable snapshot regardless of concurrent commits.

The store comes in two flavors: a local store for a single process, which
guards its head revision with a lock, and a replicated store shared by several
processes, which advances the head with compare-and-set and retries commits
which lose the race.
*/
package microkernel
