// Package upload persists the file parts of multipart request bodies.
//
// The request decoder hands every part that carries a filename to a Store
// together with the exact number of bytes announced by the part's
// Content-Length header. The Store returns a location string that the
// decoder records as the value of the request parameter named after the
// file:
//
//	params["report.csv"] = "/tmp/report.csv"                // DiskStore
//	params["report.csv"] = "s3://bucket/uploads/<id>/report.csv" // S3Store
//
// DiskStore is the default and writes into a temporary folder, naming the
// file after the client-supplied filename (reduced to its base name so a
// part cannot escape the folder). S3Store streams parts to an AWS S3 bucket.
package upload
