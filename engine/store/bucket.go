package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"bilireel/engine"
)

const bucketPrefix = "tasks/"

// Bucket 每个任务一个对象：tasks/<id>.json
type Bucket struct {
	bucket *blob.Bucket
}

// OpenBucket 支持 gocloud.dev 的任意 bucket URL
func OpenBucket(ctx context.Context, url string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return &Bucket{bucket: b}, nil
}

func objectKey(id string) string {
	return bucketPrefix + id + ".json"
}

func (b *Bucket) Put(ctx context.Context, rec engine.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.bucket.WriteAll(ctx, objectKey(rec.ID), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

func (b *Bucket) Delete(ctx context.Context, id string) error {
	err := b.bucket.Delete(ctx, objectKey(id))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (b *Bucket) Load(ctx context.Context) ([]engine.TaskRecord, error) {
	var list []engine.TaskRecord
	iter := b.bucket.List(&blob.ListOptions{Prefix: bucketPrefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, ".json") {
			continue
		}

		data, err := b.bucket.ReadAll(ctx, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", obj.Key, err)
		}
		var rec engine.TaskRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", obj.Key, err)
		}
		list = append(list, rec)
	}
	return list, nil
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}
