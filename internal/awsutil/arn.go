// Package awsutil provides shared AWS utility functions.
package awsutil

import "strings"

const (
	// arnSegments is the number of colon-separated segments in an ARN; the
	// resource segment may itself contain colons.
	arnSegments = 6
	arnPrefix   = "arn"
)

// ARN is a parsed Amazon Resource Name.
type ARN struct {
	Partition string
	Service   string
	Region    string
	AccountID string
	Resource  string
}

// ParseARN splits s into its segments. ok is false when s is not an ARN.
func ParseARN(s string) (ARN, bool) {
	// ARN format: arn:partition:service:region:account:resource
	parts := strings.SplitN(s, ":", arnSegments)
	if len(parts) < arnSegments || parts[0] != arnPrefix || parts[2] == "" || parts[5] == "" {
		return ARN{}, false
	}
	return ARN{
		Partition: parts[1],
		Service:   parts[2],
		Region:    parts[3],
		AccountID: parts[4],
		Resource:  parts[5],
	}, true
}

// RegionFromARN extracts the AWS region from an ARN string.
// Returns empty string if the ARN is malformed or the region segment is empty.
func RegionFromARN(arn string) string {
	parsed, ok := ParseARN(arn)
	if !ok {
		return ""
	}
	return parsed.Region
}

// BucketName returns the bucket named by an S3 bucket ARN such as
// arn:aws:s3:::media. Any other value is returned unchanged.
func BucketName(s string) string {
	parsed, ok := ParseARN(s)
	if !ok || parsed.Service != "s3" {
		return s
	}
	bucket, _, _ := strings.Cut(parsed.Resource, "/")
	return bucket
}
