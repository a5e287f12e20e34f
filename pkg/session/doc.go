/*
Package session runs chat messages against persisted session state.

A Manager serializes messages per session, in process with reference-counted mutexes and across
replicas with an optional ports.DistributedLocker, so a load-exec-save cycle never interleaves
with another for the same user.
*/
package session
