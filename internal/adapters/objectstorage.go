package adapters

import (
	"context"
	"fmt"
	"time"
)

// HTTPObjectStorage talks to the external object store that holds ingested
// media and per-event ContextFile artifacts. Out of scope per spec §1 as a
// concrete provider; only the narrow put/list/get_text/get_bytes/public_url
// contract is modeled.
type HTTPObjectStorage struct {
	base   baseHTTPClient
	bucket string
}

func NewHTTPObjectStorage(baseURL, apiKey, bucket string) *HTTPObjectStorage {
	return &HTTPObjectStorage{base: newBaseHTTPClient(baseURL, apiKey, 30*time.Second), bucket: bucket}
}

func (o *HTTPObjectStorage) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if bucket == "" {
		bucket = o.bucket
	}
	var out struct {
		URL string `json:"url"`
	}
	req := struct {
		Bucket      string `json:"bucket"`
		Key         string `json:"key"`
		DataB64     string `json:"data_base64"`
		ContentType string `json:"content_type"`
	}{Bucket: bucket, Key: key, DataB64: encodeB64(data), ContentType: contentType}
	if err := o.base.postJSON(ctx, "/objects/put", req, &out); err != nil {
		return "", fmt.Errorf("object put %s/%s: %w", bucket, key, err)
	}
	return out.URL, nil
}

func (o *HTTPObjectStorage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if bucket == "" {
		bucket = o.bucket
	}
	var out struct {
		Keys []string `json:"keys"`
	}
	req := struct {
		Bucket string `json:"bucket"`
		Prefix string `json:"prefix"`
	}{Bucket: bucket, Prefix: prefix}
	if err := o.base.postJSON(ctx, "/objects/list", req, &out); err != nil {
		return nil, fmt.Errorf("object list %s/%s: %w", bucket, prefix, err)
	}
	return out.Keys, nil
}

func (o *HTTPObjectStorage) GetText(ctx context.Context, bucket, key string) (string, error) {
	if bucket == "" {
		bucket = o.bucket
	}
	var out struct {
		Text string `json:"text"`
	}
	req := struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
	}{Bucket: bucket, Key: key}
	if err := o.base.postJSON(ctx, "/objects/get_text", req, &out); err != nil {
		return "", fmt.Errorf("object get_text %s/%s: %w", bucket, key, err)
	}
	return out.Text, nil
}

func (o *HTTPObjectStorage) GetBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = o.bucket
	}
	var out struct {
		DataB64 string `json:"data_base64"`
	}
	req := struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
	}{Bucket: bucket, Key: key}
	if err := o.base.postJSON(ctx, "/objects/get_bytes", req, &out); err != nil {
		return nil, fmt.Errorf("object get_bytes %s/%s: %w", bucket, key, err)
	}
	data, err := decodeB64(out.DataB64)
	if err != nil {
		return nil, fmt.Errorf("decode object bytes %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func (o *HTTPObjectStorage) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	if bucket == "" {
		bucket = o.bucket
	}
	var out struct {
		URL string `json:"url"`
	}
	req := struct {
		Bucket string `json:"bucket"`
		Key    string `json:"key"`
	}{Bucket: bucket, Key: key}
	if err := o.base.postJSON(ctx, "/objects/public_url", req, &out); err != nil {
		return "", fmt.Errorf("object public_url %s/%s: %w", bucket, key, err)
	}
	return out.URL, nil
}
