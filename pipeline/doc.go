// Package pipeline sequences graph construction.
//
// A Pipeline runs the construction phases in their dependency order:
//
//  1. nodes from records
//  2. relations from records
//  3. relations from existing subgraphs
//  4. nodes from existing subgraphs (reification)
//  5. directly-follows inference
//  6. merging of duplicate directly-follows edges
//  7. deletion of directly-follows edges parallel to a parent's edges
//
// Phases and the constructors within a phase run strictly one after the
// other on a single store session, since later constructors read what
// earlier ones wrote. Callers may run a subset of the phases and restrict
// each phase to an allow-list of type names; the pipeline does not add the
// phases a requested phase depends on.
//
// Besides the seven phases the pipeline runs supporting steps: processed
// markers are cleared after every by-record constructor, nodes of
// create-then-merge types are deduplicated on their identifier, and
// reified nodes are correlated with their parents' events in phase 4.
// Constructors that name an inference hook run the hook registered under
// that name on the HookRegistry.
package pipeline
