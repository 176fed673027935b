package preflight

import (
	"fmt"
	"net/url"
	"strings"
)

// readActions/writeActions are the S3 permissions the two S3-backed
// components in this pipeline perform: linestream's S3 raw-corpus
// reader only ever GETs, durablestate's S3Store both GETs (Load) and
// PUTs (Save).
var (
	readActions  = []string{"s3:GetObject"}
	writeActions = []string{"s3:GetObject", "s3:PutObject"}
)

// RawCorpusResource builds the Resource for an S3-backed raw-corpus URI
// read by linestream, read-only.
func RawCorpusResource(s3URI string) (Resource, error) {
	arn, err := bucketPrefixArn(s3URI)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Name: "raw corpus (" + s3URI + ")", ARN: arn, Actions: readActions}, nil
}

// DurableStateResource builds the Resource for an S3-backed checkpoint
// or report URI read and written by durablestate.S3Store.
func DurableStateResource(label, s3URI string) (Resource, error) {
	arn, err := objectArn(s3URI)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Name: label + " (" + s3URI + ")", ARN: arn, Actions: writeActions}, nil
}

// bucketPrefixArn turns "s3://bucket/prefix" into an ARN covering every
// object under that prefix, for corpora that are directories of files.
func bucketPrefixArn(s3URI string) (string, error) {
	bucket, key, err := parseS3URI(s3URI)
	if err != nil {
		return "", err
	}
	if key == "" {
		return fmt.Sprintf("arn:aws:s3:::%s/*", bucket), nil
	}
	return fmt.Sprintf("arn:aws:s3:::%s/%s/*", bucket, strings.TrimSuffix(key, "/")), nil
}

// objectArn turns "s3://bucket/key" into the ARN of that single object.
func objectArn(s3URI string) (string, error) {
	bucket, key, err := parseS3URI(s3URI)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("arn:aws:s3:::%s/%s", bucket, key), nil
}

func parseS3URI(s3URI string) (bucket, key string, err error) {
	u, err := url.Parse(s3URI)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %w", s3URI, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URI %q: must use s3 scheme", s3URI)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
