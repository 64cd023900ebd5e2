package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// maxListKeys is the S3 cap on keys per ListObjectsV2 response.
const maxListKeys = 1000

// MockClient is an in-memory API for tests and examples. It serves a single
// bucket and lists keys in ascending byte order, as S3 does.
type MockClient struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]mockObject
	listErr error
	lists   int
}

type mockObject struct {
	data     []byte
	modified time.Time
}

// NewMockClient creates an empty mock serving bucket.
func NewMockClient(bucket string) *MockClient {
	return &MockClient{
		bucket:  bucket,
		objects: make(map[string]mockObject),
	}
}

// Seed stores an empty object under each key.
func (m *MockClient) Seed(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.objects[key] = mockObject{modified: time.Unix(0, 0).UTC()}
	}
}

// FailLists makes every ListObjectsV2 call return err. Nil clears it.
func (m *MockClient) FailLists(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// ListCalls returns the number of ListObjectsV2 calls served.
func (m *MockClient) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lists
}

func (m *MockClient) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != m.bucket {
		return &types.NoSuchBucket{Message: aws.String("bucket does not exist")}
	}
	return nil
}

// PutObject implements API.PutObject.
func (m *MockClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := m.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(params.Key)] = mockObject{data: data, modified: time.Now().UTC()}
	return &s3.PutObjectOutput{}, nil
}

// GetObject implements API.GetObject, including "bytes=start-end" ranges.
func (m *MockClient) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := m.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	m.mu.RLock()
	obj, exists := m.objects[aws.ToString(params.Key)]
	m.mu.RUnlock()
	if !exists {
		return nil, &types.NoSuchKey{}
	}

	data := obj.data
	if params.Range != nil {
		var start, end int64
		if _, err := fmt.Sscanf(aws.ToString(params.Range), "bytes=%d-%d", &start, &end); err != nil {
			return nil, &mockAPIError{code: "InvalidArgument", message: err.Error()}
		}
		if start >= int64(len(data)) {
			return nil, &mockAPIError{code: "InvalidRange", message: "range not satisfiable"}
		}
		end = min(end, int64(len(data))-1)
		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// HeadObject implements API.HeadObject.
func (m *MockClient) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := m.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	m.mu.RLock()
	obj, exists := m.objects[aws.ToString(params.Key)]
	m.mu.RUnlock()
	if !exists {
		return nil, &mockAPIError{code: "NotFound", message: "not found"}
	}

	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 with Prefix, StartAfter,
// ContinuationToken and MaxKeys. Continuation tokens are the last key
// returned.
func (m *MockClient) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	m.lists++
	listErr := m.listErr
	m.mu.Unlock()
	if listErr != nil {
		return nil, listErr
	}
	if err := m.checkBucket(params.Bucket); err != nil {
		return nil, err
	}

	prefix := aws.ToString(params.Prefix)
	after := aws.ToString(params.StartAfter)
	if token := aws.ToString(params.ContinuationToken); token != "" {
		after = max(after, token)
	}
	maxKeys := maxListKeys
	if params.MaxKeys != nil && int(*params.MaxKeys) < maxKeys {
		maxKeys = max(int(*params.MaxKeys), 0)
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) && key > after {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	truncated := len(keys) > maxKeys
	keys = keys[:min(len(keys), maxKeys)]
	contents := make([]types.Object, len(keys))
	for i, key := range keys {
		obj := m.objects[key]
		contents[i] = types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		}
	}
	m.mu.RUnlock()

	out := &s3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(truncated),
		KeyCount:    aws.Int32(int32(len(contents))),
		Prefix:      params.Prefix,
	}
	if truncated && len(keys) > 0 {
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	return out, nil
}

var _ API = (*MockClient)(nil)

// mockAPIError implements smithy.APIError.
type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string {
	return e.code + ": " + e.message
}

func (e *mockAPIError) ErrorCode() string {
	return e.code
}

func (e *mockAPIError) ErrorMessage() string {
	return e.message
}

func (e *mockAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}
