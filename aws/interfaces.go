// Package aws implements the AWS service abstractions the pipeline
// depends on: S3 (raw-corpus reads, durable checkpoint/report storage)
// and IAM (the preflight permission check). It provides a narrow
// interface and an SDK-backed implementation for each.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client defines the interface for S3 operations shared by
// linestream's optional S3 raw-corpus reader and durablestate.S3Store.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// IAMClient defines the interface for IAM operations the preflight
// package needs: simulating whether a principal may perform a set of
// actions against a set of resources.
type IAMClient interface {
	SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)
}

// Compile-time interface checks to ensure implementations satisfy interfaces
var (
	_ S3Client  = (*S3ClientImpl)(nil)
	_ IAMClient = (*IAMClientImpl)(nil)

	// AWS SDK interface checks to ensure SDK clients satisfy interfaces
	_ S3Client  = (*s3.Client)(nil)
	_ IAMClient = (*iam.Client)(nil)
)
