// Package archive downloads every object under a folder prefix and packs
// them into a single ZIP file.
//
// Objects are fetched in fixed-size concurrent batches. Archived objects
// that are not restored, and objects whose fetch fails, are left out of the
// archive but still count toward download progress so the bar reaches
// 100%. Once every batch is done the entries are deflated in key order and
// the compressing phase reports its own percentage.
package archive
