package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/require"
)

// FakeS3 is an in-process S3 server backed by memory.
type FakeS3 struct {
	Server  *httptest.Server
	Client  *s3.Client
	Presign *s3.PresignClient
	Bucket  string
}

// NewFakeS3 starts a gofakes3 server with one bucket and returns SDK clients
// pointed at it. The server is closed with t.Cleanup.
func NewFakeS3(t *testing.T, bucket string) *FakeS3 {
	t.Helper()

	backend := s3mem.New()
	require.NoError(t, backend.CreateBucket(bucket))

	faker := gofakes3.New(backend,
		gofakes3.WithTimeSource(gofakes3.DefaultTimeSource()),
	)
	server := httptest.NewServer(faker.Server())
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(server.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("test", "test", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &FakeS3{
		Server:  server,
		Client:  client,
		Presign: s3.NewPresignClient(client),
		Bucket:  bucket,
	}
}
