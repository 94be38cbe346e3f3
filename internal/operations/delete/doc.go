// Package delete handles object deletion.
// This includes single object deletion and folder deletion, where every key
// under a prefix is removed in batches.
//
// Batch operations use the store's delete-objects call to remove up to
// 1000 objects in a single request.
package delete
