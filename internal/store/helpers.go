package store

import (
	"context"
	"fmt"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/pathkey"
)

// Drain fetches every page of a listing and returns the complete record set.
// A failure on any page discards the pages already read.
func Drain(ctx context.Context, c Client, bucket, prefix string) ([]ObjectRecord, error) {
	var (
		records []ObjectRecord
		token   string
		seen    = map[string]struct{}{}
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.KindTimeout, "listing interrupted", err)
		}

		page, err := c.ListObjectsPage(ctx, bucket, prefix, token)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)

		if page.NextToken == "" {
			return records, nil
		}
		if _, dup := seen[page.NextToken]; dup {
			return nil, errs.Newf(errs.KindStoreFailed, "listing of %s did not advance past token %q",
				pathkey.Build(bucket, prefix), page.NextToken)
		}
		seen[page.NextToken] = struct{}{}
		token = page.NextToken
	}
}

// DeletePrefix removes every object under loc.Key, including a directory
// marker equal to the prefix itself. It returns the number of deleted keys.
func DeletePrefix(ctx context.Context, c Client, loc pathkey.Location) (int, error) {
	if loc.Bucket == "" {
		return 0, errs.New(errs.KindInvalidInput, "bucket is required")
	}
	if loc.Key == "" {
		return 0, errs.New(errs.KindInvalidInput, "refusing to delete the contents of a whole bucket")
	}
	records, err := Drain(ctx, c, loc.Bucket, loc.Key)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(records); start += DeleteBatchSize {
		end := min(start+DeleteBatchSize, len(records))
		keys := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			keys = append(keys, r.Key)
		}
		if err := c.DeleteObjects(ctx, loc.Bucket, keys); err != nil {
			return deleted, errs.Wrap(errs.KindStoreFailed, fmt.Sprintf("failed to delete %s", loc), err)
		}
		deleted += len(keys)
	}
	return deleted, nil
}
