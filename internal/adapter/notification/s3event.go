// Package notification turns storage upload notifications into object references.
package notification

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// FromS3Event returns one ObjectRef per upload record of the event.
// S3 URL-encodes object keys in notifications, so keys are decoded here.
// Removal records are skipped, so a removal-only event yields no refs and no error.
func FromS3Event(evt events.S3Event) ([]domain.ObjectRef, error) {
	if len(evt.Records) == 0 {
		return nil, domain.ErrEmptyNotification
	}

	refs := make([]domain.ObjectRef, 0, len(evt.Records))
	for i, rec := range evt.Records {
		if strings.Contains(rec.EventName, "ObjectRemoved") {
			continue
		}

		bucket := rec.S3.Bucket.Name
		if bucket == "" || rec.S3.Object.Key == "" {
			return nil, fmt.Errorf("record %d: bucket and object key are required", i)
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid object key %q: %w", i, rec.S3.Object.Key, err)
		}

		refs = append(refs, domain.ObjectRef{
			Bucket: bucket,
			Key:    key,
			Size:   rec.S3.Object.Size,
			ETag:   rec.S3.Object.ETag,
		})
	}

	return refs, nil
}
