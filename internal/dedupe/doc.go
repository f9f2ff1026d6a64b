// Package dedupe finds duplicate tracks in a library snapshot and suggests
// which copy to keep.
//
// Detection runs four independent detectors (exact fingerprint, metadata,
// duration and fuzzy title matching) over the snapshot in input order. Their
// candidate groups may overlap; [Reconcile] collapses them into a
// track-disjoint list, highest score first. [Recommend] is independent of
// detection and can be called per group by whoever renders or resolves it.
//
// The package holds no state between calls. [Engine] only carries the
// logger and the id source used for new groups.
package dedupe
