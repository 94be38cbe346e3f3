// Package s3desk moves files between a local machine and one object-storage
// bucket.
//
// Every upload, download and folder archive is tracked in a transfer
// registry that callers can snapshot or subscribe to for live progress.
// Large uploads are split into retried parts, large downloads are read in
// retried byte ranges, and a folder can be downloaded as a single ZIP file.
// Objects in archival storage classes are skipped by downloads until they
// are restored.
//
// Example usage:
//
//	client, err := s3desk.New(
//	    s3desk.WithBucket("media"),
//	    s3desk.WithRegion("eu-west-1"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	// Upload a file
//	result, err := client.UploadFile(ctx, "photos/cat.jpg", "/home/me/cat.jpg")
//	if err != nil {
//	    return err
//	}
//
//	// Download a folder as photos.zip
//	archive, err := client.DownloadFolder(ctx, "photos")
package s3desk
