package access

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the part of the s3 client needed to read identities
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads identities from an object. uri has the form s3://bucket/key;
// the extension of key selects the format as for FileLoader.
func S3Loader(client ObjectGetter, uri string) Loader {
	return func(ctx context.Context) (Identities, error) {
		bucket, key, err := parseS3URI(uri)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("cannot get identities from %s: %w", uri, err)
		}
		defer out.Body.Close()
		data, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("cannot read identities from %s: %w", uri, err)
		}
		return Decode(data, path.Ext(key))
	}
}

// IsS3 returns true if source is an s3:// uri
func IsS3(source string) bool {
	return strings.HasPrefix(source, "s3://")
}

func parseS3URI(uri string) (string, string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return "", "", fmt.Errorf("invalid s3 uri %q", uri)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
