package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/storage"
)

type fakeClient struct {
	objects map[string][]byte
	putKey  string
	putType string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}}
}

func (f *fakeClient) Put(_ context.Context, _ string, key string, reader io.Reader, _ int64, contentType string) (storage.ObjectInfo, error) {
	payload, err := io.ReadAll(reader)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = payload
	f.putKey = key
	f.putType = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (f *fakeClient) Get(_ context.Context, _ string, key string) (io.ReadCloser, error) {
	payload, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (f *fakeClient) Stat(_ context.Context, _ string, key string) (storage.ObjectInfo, error) {
	payload, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeClient) CreateBucket(context.Context, string, string) error {
	return nil
}

func TestStorePutAppliesPrefix(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient("archives", "askdb", client)
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}

	payload := []byte("parquet bytes")
	info, err := store.Put(context.Background(), "/audit/query-logs-1.parquet", bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if client.putKey != "askdb/audit/query-logs-1.parquet" {
		t.Fatalf("unexpected stored key %q", client.putKey)
	}
	if client.putType != "application/vnd.apache.parquet" {
		t.Fatalf("unexpected content type %q", client.putType)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", info.Size)
	}
}

func TestStoreGetRoundTrip(t *testing.T) {
	client := newFakeClient()
	store, err := NewWithClient("archives", "", client)
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}

	payload := []byte("hello")
	if _, err := store.Put(context.Background(), "audit/a.parquet", bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reader, err := store.Get(context.Background(), "audit/a.parquet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = reader.Close() }()
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected payload %q", got)
	}
}

func TestStoreGetMissingObject(t *testing.T) {
	store, err := NewWithClient("archives", "askdb", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}

	if _, err := store.Get(context.Background(), "audit/missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if _, err := store.Stat(context.Background(), "audit/missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	store, err := NewWithClient("archives", "askdb", newFakeClient())
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}

	cases := []string{"", "   ", "../escape.parquet", "audit/../../escape.parquet"}
	for _, key := range cases {
		if _, err := store.Put(context.Background(), key, strings.NewReader("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		useSSL   bool
		wantHost string
		wantSSL  bool
		wantErr  bool
	}{
		{raw: "minio.local:9000", useSSL: false, wantHost: "minio.local:9000", wantSSL: false},
		{raw: "https://s3.example.com", useSSL: false, wantHost: "s3.example.com", wantSSL: true},
		{raw: "http://minio.local:9000", useSSL: true, wantHost: "minio.local:9000", wantSSL: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		host, ssl, err := parseEndpoint(tc.raw, tc.useSSL)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q): %v", tc.raw, err)
		}
		if host != tc.wantHost || ssl != tc.wantSSL {
			t.Fatalf("parseEndpoint(%q) = %q %v", tc.raw, host, ssl)
		}
	}
}
