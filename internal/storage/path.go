package storage

import (
	"fmt"
	"strings"
)

// ObjectRef is a resolved bucket/key pair.
type ObjectRef struct {
	Bucket string
	Key    string
}

// placeholders are the junk values crawlers leave in s3_path columns when a
// document was never uploaded.
var placeholders = map[string]struct{}{
	"na": {}, "n/a": {}, "none": {}, "null": {}, "-": {}, "--": {},
}

// ResolvePath turns a stored s3_path value into a bucket/key pair. Full
// s3://bucket/key URIs are parsed; bare keys are joined with the default
// bucket and prefix. Placeholder values and non-PDF keys are rejected.
func ResolvePath(s3Path, defaultBucket, defaultPrefix string) (ObjectRef, error) {
	p := strings.TrimSpace(s3Path)
	if p == "" {
		return ObjectRef{}, fmt.Errorf("empty s3 path")
	}
	if _, junk := placeholders[strings.ToLower(p)]; junk {
		return ObjectRef{}, fmt.Errorf("placeholder s3 path %q", p)
	}

	var ref ObjectRef
	if rest, ok := strings.CutPrefix(p, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return ObjectRef{}, fmt.Errorf("malformed s3 uri %q", p)
		}
		ref = ObjectRef{Bucket: bucket, Key: key}
	} else {
		key := strings.TrimPrefix(p, "/")
		if !strings.HasPrefix(key, defaultPrefix) {
			key = defaultPrefix + key
		}
		ref = ObjectRef{Bucket: defaultBucket, Key: key}
	}

	if !strings.HasSuffix(strings.ToLower(ref.Key), ".pdf") {
		return ObjectRef{}, fmt.Errorf("unsupported object type %q", ref.Key)
	}
	return ref, nil
}
