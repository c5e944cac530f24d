/*
Package persistence is the backend agnostic storage layer.

A Repository is one open connection to a backend. It hands out a Collection
per named container. Records are instances of a Model bound to a Collection;
they track which fields changed since they were loaded and route Save to an
insert or a patch accordingly.

Backends live in sub packages (memory, mongo, rethink, postgres) and register
a Factory with a Registry under their backend id. A Provider opens the
configured repository exactly once per process.

Criteria accepted by Count, Find, FindOne, Update and Remove are either a
Filter (exact match on every entry), a Query obtained from the same
collection, nil for everything, or a backend native value which is passed
through unchanged.
*/
package persistence
