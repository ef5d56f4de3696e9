// Package catalog bundles the LifeLine Agents persona roster and the shared
// template sets as embedded YAML manifests. Register performs the one-time
// bulk registration at start-up: every persona's templates tagged with that
// persona's id, followed by the shared category sets untagged.
package catalog
