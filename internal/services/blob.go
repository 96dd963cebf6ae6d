package services

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/pushp314/converse-backend/internal/config"
)

// Blob storage collaborator (Cloudflare R2 via the S3 API). The messaging
// core only ever stores the object key; URLs are resolved at read time.

func getS3Client() (*s3.Client, error) {
	cfg := appConfig.AppConfig
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID),
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadBlob streams an object to the bucket under the given key
func UploadBlob(key string, body io.Reader, contentType string) error {
	client, err := getS3Client()
	if err != nil {
		return err
	}

	cfg := appConfig.AppConfig
	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(cfg.R2BucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	return err
}

// ResolveBlobURL maps a stored object key to a retrievable public URL
func ResolveBlobURL(key string) string {
	if key == "" || appConfig.AppConfig == nil {
		return ""
	}
	publicURL := appConfig.AppConfig.R2PublicURL
	if publicURL == "" {
		// Public URL construction depends on R2 setup (Custom Domain or R2.dev)
		publicURL = fmt.Sprintf("https://%s.r2.dev", appConfig.AppConfig.R2BucketName)
	}
	return fmt.Sprintf("%s/%s", publicURL, key)
}
