// package models defines the canonical data model for the library sync engine.
//
// Two families of types live here: the persisted entity graph (connected
// accounts, canonical tracks, per-platform availability, playlists,
// memberships and the favorites pointer) and the normalized record shapes
// that every platform adapter maps its remote API responses into.
package models
