// Package receipt implements persistence for the install receipt.
//
// The FileRepository stores the receipt as YAML under the installation root
// and exposes a Repository interface that the deploy service depends on.
// Receipts are informational: every decision about the installation is made
// by inspecting the tree itself.
package receipt
