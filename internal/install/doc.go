// Package install owns the versioned installation tree: the install lock,
// safe archive extraction, the extract-publish-switch-relink sequence with
// its final verification, and the single clean-slate repair retry.
//
// Layout under the installation root:
//
//	<root>/versions/<tag>/cgp/cgp   extracted bundle, immutable once published
//	<root>/current -> versions/<tag>
//	<dest>/cgp -> <root>/current/cgp/cgp
//
// Every mutation of the tree happens behind the install lock and through
// atomic renames, so concurrent readers of the destination symlink always
// reach either the previous working version or the new one.
package install
