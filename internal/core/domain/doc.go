// Package domain defines the core domain models for OnvifMesh.
//
// The central entity is Device: one tracked ONVIF endpoint across its
// managed lifetime. A Device embeds a guard.Guard; background steps take a
// reference before touching it and re-check validity before publishing, so
// a rescan can drop the whole fleet while steps are still in flight.
//
// This package also holds the error catalogue and ID generation.
package domain
