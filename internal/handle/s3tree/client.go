package s3tree

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openmined/foldersync/internal/handle"
)

// Config holds the connection settings for S3 compatible stores.
type Config struct {
	Region       string `json:"region" mapstructure:"region"`
	Endpoint     string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	AccessKey    string `json:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey    string `json:"secret_key,omitempty" mapstructure:"secret_key"`
	UsePathStyle bool   `json:"use_path_style,omitempty" mapstructure:"use_path_style"`
}

// NewClient builds an S3 client. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 5 * time.Minute,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// Opener returns a handle.Opener for "s3" references. The client is created on first use so
// configurations without S3 trees never touch the AWS credential chain.
func Opener(cfg Config) handle.Opener {
	var (
		once   sync.Once
		client *s3.Client
		err    error
	)
	return func(ctx context.Context, ref string) (handle.Handle, error) {
		once.Do(func() {
			client, err = NewClient(ctx, cfg)
		})
		if err != nil {
			return nil, err
		}
		return openHandle(ctx, client, ref)
	}
}

// OpenerWithAPI returns an opener backed by an existing client.
func OpenerWithAPI(api S3API) handle.Opener {
	return func(ctx context.Context, ref string) (handle.Handle, error) {
		return openHandle(ctx, api, ref)
	}
}

func openHandle(ctx context.Context, api S3API, ref string) (handle.Handle, error) {
	root, err := OpenRoot(ctx, api, ref)
	if err != nil {
		return nil, err
	}
	return root, nil
}
