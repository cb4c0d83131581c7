package source

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gantrylabs/gantry/pkg/digest"
)

// Object metadata keys carrying integrity hints on stored artifacts.
const (
	s3MetaDigest    = "artifact-digest"
	s3MetaSignature = "artifact-signature"
)

// S3Provider fetches artifacts from s3://bucket/key locators.
type S3Provider struct {
	client *s3.Client
}

// S3Config holds connection settings for the S3 provider.
type S3Config struct {
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
}

// NewS3Provider creates an S3-backed provider using the default AWS
// credential chain.
func NewS3Provider(ctx context.Context, cfg S3Config) (*S3Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	})
	return &S3Provider{client: client}, nil
}

// NewS3ProviderFromClient wraps an existing client; used by tests.
func NewS3ProviderFromClient(client *s3.Client) *S3Provider {
	return &S3Provider{client: client}
}

func (p *S3Provider) Fetch(ctx context.Context, loc Locator) (*Payload, error) {
	result, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, notFound(loc, err)
		}
		return nil, transient(loc, err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, transient(loc, err)
	}

	payload := &Payload{
		Bytes:       data,
		MediaType:   contentMediaType(aws.ToString(result.ContentType)),
		Signature:   strings.TrimSpace(result.Metadata[s3MetaSignature]),
		SourceLabel: loc.Raw,
	}
	if adv := strings.TrimSpace(result.Metadata[s3MetaDigest]); adv != "" {
		d, err := digest.Parse(adv)
		if err != nil {
			return nil, transient(loc, err)
		}
		payload.AdvertisedDigest = d
	}
	return payload, nil
}
