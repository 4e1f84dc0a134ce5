// Package gitstore is a git-backed workbook.
//
// A workbook is one git repository. Each directory on the workbook branch
// is a data folder whose id is its slash-separated path. A folder may carry
// a _schema.yaml file describing its records; the file is never listed as
// a record.
//
// Everything goes through git plumbing (ls-tree, cat-file, hash-object,
// update-index, write-tree, commit-tree, update-ref) so the working tree,
// if any, is never touched. A commit either moves the branch to a commit
// holding every file of the batch or leaves it where it was: the final
// update-ref compares against the parent it built on.
//
// All paths are normalized to NFC before they are used.
package gitstore
