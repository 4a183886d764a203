// Package s3tree exposes an S3 bucket prefix as a handle tree. Directories are key prefixes
// ending in "/"; CreateChildDirectory writes an empty marker object so empty directories
// survive.
package s3tree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/openmined/foldersync/internal/handle"
	"github.com/openmined/foldersync/internal/utils"
)

const delimiter = "/"

// S3API is the subset of *s3.Client used by the tree.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Node is one object (file) or key prefix (directory).
type Node struct {
	api         S3API
	bucket      string
	key         string // object key for files, prefix ending in "/" (or "") for directories
	name        string
	dir         bool
	modTime     time.Time
	contentType string
}

var (
	_ handle.Handle      = (*Node)(nil)
	_ handle.ChildFinder = (*Node)(nil)
)

// OpenRoot returns the directory node for "bucket[/prefix]" after checking that the bucket can
// be listed.
func OpenRoot(ctx context.Context, api S3API, ref string) (*Node, error) {
	bucket, prefix := splitBucketRef(ref)
	if bucket == "" {
		return nil, fmt.Errorf("s3 reference %q has no bucket", ref)
	}

	_, err := api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
	}

	name := bucket
	if prefix != "" {
		name = baseName(prefix)
	}
	return &Node{api: api, bucket: bucket, key: prefix, name: name, dir: true}, nil
}

func splitBucketRef(ref string) (bucket, prefix string) {
	ref = strings.TrimPrefix(ref, delimiter)
	bucket, prefix, _ = strings.Cut(ref, delimiter)
	prefix = strings.Trim(prefix, delimiter)
	if prefix != "" {
		prefix += delimiter
	}
	return bucket, prefix
}

func baseName(key string) string {
	key = strings.TrimSuffix(key, delimiter)
	return key[strings.LastIndex(key, delimiter)+1:]
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) IsDirectory() bool {
	return n.dir
}

func (n *Node) IsFile() bool {
	return !n.dir
}

// LastModified is zero for directories, which S3 does not timestamp.
func (n *Node) LastModified() int64 {
	if n.modTime.IsZero() {
		return 0
	}
	return n.modTime.UnixMilli()
}

func (n *Node) MimeType() string {
	if n.contentType != "" {
		return n.contentType
	}
	return utils.DetectContentType(n.name)
}

func (n *Node) ListChildren(ctx context.Context) ([]handle.Handle, error) {
	if !n.dir {
		return nil, handle.ErrNotDirectory
	}

	var children []handle.Handle
	paginator := s3.NewListObjectsV2Paginator(n.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(n.bucket),
		Prefix:    aws.String(n.key),
		Delimiter: aws.String(delimiter),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", n.bucket, n.key, translateError(err))
		}
		for _, cp := range page.CommonPrefixes {
			prefix := aws.ToString(cp.Prefix)
			children = append(children, n.dirChild(prefix))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == n.key || strings.HasSuffix(key, delimiter) {
				continue // directory marker
			}
			children = append(children, &Node{
				api:     n.api,
				bucket:  n.bucket,
				key:     key,
				name:    strings.TrimPrefix(key, n.key),
				modTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return children, nil
}

func (n *Node) FindChild(ctx context.Context, name string) (handle.Handle, error) {
	if !n.dir {
		return nil, handle.ErrNotDirectory
	}

	key := n.key + name
	head, err := n.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(n.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return &Node{
			api:         n.api,
			bucket:      n.bucket,
			key:         key,
			name:        name,
			modTime:     aws.ToTime(head.LastModified),
			contentType: aws.ToString(head.ContentType),
		}, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("head s3://%s/%s: %w", n.bucket, key, translateError(err))
	}

	out, err := n.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(n.bucket),
		Prefix:  aws.String(key + delimiter),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", n.bucket, key, translateError(err))
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return nil, nil
	}
	return n.dirChild(key + delimiter), nil
}

func (n *Node) dirChild(prefix string) *Node {
	return &Node{api: n.api, bucket: n.bucket, key: prefix, name: baseName(prefix), dir: true}
}

func (n *Node) OpenReadStream(ctx context.Context) (io.ReadCloser, error) {
	if n.dir {
		return nil, fmt.Errorf("read s3://%s/%s: is a directory", n.bucket, n.key)
	}
	out, err := n.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(n.bucket),
		Key:    aws.String(n.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", n.bucket, n.key, translateError(err))
	}
	return out.Body, nil
}

// OpenWriteStream buffers the content in memory and uploads it on Close.
func (n *Node) OpenWriteStream(ctx context.Context) (io.WriteCloser, error) {
	if n.dir {
		return nil, fmt.Errorf("write s3://%s/%s: is a directory", n.bucket, n.key)
	}
	return &objectWriter{ctx: ctx, node: n}, nil
}

func (n *Node) CreateChildFile(ctx context.Context, mimeType, name string) (handle.Handle, error) {
	if !n.dir {
		return nil, handle.ErrNotDirectory
	}
	child := &Node{api: n.api, bucket: n.bucket, key: n.key + name, name: name, contentType: mimeType}
	if err := child.put(ctx, nil); err != nil {
		return nil, err
	}
	return child, nil
}

func (n *Node) CreateChildDirectory(ctx context.Context, name string) (handle.Handle, error) {
	if !n.dir {
		return nil, handle.ErrNotDirectory
	}
	child := n.dirChild(n.key + name + delimiter)
	if _, err := n.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(n.bucket),
		Key:           aws.String(child.key),
		Body:          bytes.NewReader(nil),
		ContentLength: aws.Int64(0),
	}); err != nil {
		return nil, fmt.Errorf("put s3://%s/%s: %w", n.bucket, child.key, translateError(err))
	}
	return child, nil
}

// Delete removes the object, or the marker object of a directory.
func (n *Node) Delete(ctx context.Context) error {
	if n.dir && n.key == "" {
		return errors.New("refusing to delete bucket root")
	}
	if _, err := n.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(n.bucket),
		Key:    aws.String(n.key),
	}); err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", n.bucket, n.key, translateError(err))
	}
	return nil
}

func (n *Node) put(ctx context.Context, data []byte) error {
	contentType := n.contentType
	if contentType == "" {
		contentType = handle.DefaultMimeType
	}
	_, err := n.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(n.bucket),
		Key:           aws.String(n.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", n.bucket, n.key, translateError(err))
	}
	n.modTime = time.Now().UTC()
	slog.Debug("s3tree put", "bucket", n.bucket, "key", n.key, "size", len(data))
	return nil
}

type objectWriter struct {
	ctx    context.Context
	node   *Node
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write on closed object writer")
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.node.put(w.ctx, w.buf.Bytes())
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func translateError(err error) error {
	var nsb *types.NoSuchBucket
	if isNotFound(err) || errors.As(err, &nsb) {
		return fmt.Errorf("%w: %v", handle.ErrNotAccessible, err)
	}
	return err
}
