// Package artifact defines the central data model for Maquette artifacts.
//
// An artifact is a user-defined business tool. It starts life as a Product
// Spec (a markdown blueprint drafted in conversation) and is later promoted
// to a rendered UI: a flat tree of typed components plus a free-form data
// bag the components read and write.
//
// The artifact held in memory by a client is a working copy: it is the
// source of truth for optimistic UI and is replaced wholesale on reload,
// never merged field by field. Persistence is handled by the remote
// artifact service (see internal/store).
//
// Thread Safety: the types in this package are plain values; callers must
// synchronize access to a shared *Artifact themselves.
package artifact
