package file

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/hirosato/petsgram/domain"
	"github.com/vincent-petithory/dataurl"
)

// S3Repository stores the decoded image bytes in a bucket; the key is the
// object key.
type S3Repository struct {
	bucket   string
	client   *s3.S3
	uploader *s3manager.Uploader
}

func NewS3Repository(p client.ConfigProvider, bucket string) *S3Repository {
	return &S3Repository{
		bucket:   bucket,
		client:   s3.New(p),
		uploader: s3manager.NewUploader(p),
	}
}

func (impl *S3Repository) Add(ctx context.Context, key string, dataURL string) error {
	log.Printf("EVENT: upload s3 start")
	decoded, err := dataurl.DecodeString(dataURL)
	if err != nil {
		return err
	}
	if _, err := impl.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(impl.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(decoded.Data),
		ContentType: aws.String(decoded.ContentType()),
	}); err != nil {
		return err
	}
	log.Printf("EVENT: upload s3 end")
	return nil
}

func (impl *S3Repository) Get(ctx context.Context, key string) (string, error) {
	out, err := impl.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(impl.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}
	contentType := aws.StringValue(out.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return dataurl.New(data, contentType).String(), nil
}

// Remove only logs failures.
func (impl *S3Repository) Remove(ctx context.Context, key string) {
	if _, err := impl.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(impl.bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Printf("file: delete s3://%s/%s: %v", impl.bucket, key, err)
	}
}

var _ domain.ImageRepository = (*S3Repository)(nil)
