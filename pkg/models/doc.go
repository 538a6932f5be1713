/*
Package models manages the lifecycle of resident models.

The Registry holds loaded models under a resident-count cap (and an optional
memory budget) and evicts the least recently accessed idle model when a new
one must fit. The Manager sits on top of it and guarantees that concurrent
requests for the same model trigger exactly one backend load.

Models checked out through a Lease are pinned: they are never evicted while a
request is generating with them.
*/
package models
