// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// StdoutDest is the destination that writes to standard output.
const StdoutDest = "-"

// gcsScheme prefixes Cloud Storage destinations.
const gcsScheme = "gs://"

// ErrInvalidDestination is returned for an unusable --out value.
var ErrInvalidDestination = errors.New("invalid report destination")

// Sink receives an encoded report.
type Sink interface {
	Write(ctx context.Context, data []byte) error
	String() string
}

// SinkOptions configures OpenSink.
//
// # Fields
//
//   - Stdout: Writer used for "-". Defaults to os.Stdout.
//   - CredentialsFile: Service account key for gs:// destinations. When
//     empty, application default credentials are used.
type SinkOptions struct {
	Stdout          io.Writer
	CredentialsFile string
}

// OpenSink returns the sink for dest.
//
// # Description
//
// "-" selects standard output, "gs://bucket/object" selects Cloud Storage,
// anything else is a local file path written atomically.
func OpenSink(ctx context.Context, dest string, opts SinkOptions) (Sink, error) {
	switch {
	case dest == "":
		return nil, fmt.Errorf("%w: empty", ErrInvalidDestination)
	case dest == StdoutDest:
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		return &WriterSink{W: w}, nil
	case strings.HasPrefix(dest, gcsScheme):
		bucket, object, err := ParseGCSURL(dest)
		if err != nil {
			return nil, err
		}
		return NewGCSSink(ctx, bucket, object, opts.CredentialsFile)
	default:
		return &FileSink{Path: dest}, nil
	}
}

// Write encodes r and delivers it to dest.
func Write(ctx context.Context, dest string, r *Report, opts SinkOptions) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	sink, err := OpenSink(ctx, dest, opts)
	if err != nil {
		return err
	}
	if closer, ok := sink.(io.Closer); ok {
		defer closer.Close()
	}
	if err := sink.Write(ctx, data); err != nil {
		return fmt.Errorf("write report to %s: %w", sink, err)
	}
	return nil
}

// WriterSink writes to an io.Writer.
type WriterSink struct {
	W io.Writer
}

func (s *WriterSink) Write(_ context.Context, data []byte) error {
	_, err := s.W.Write(data)
	return err
}

func (s *WriterSink) String() string { return "stdout" }

// FileSink writes to a local file through a temp file and rename, so
// readers never see a partial report.
type FileSink struct {
	Path string
}

func (s *FileSink) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync report: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	if err := os.Rename(tempPath, s.Path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}

	success = true
	return nil
}

func (s *FileSink) String() string { return s.Path }

// GCSSink uploads to a Cloud Storage object.
type GCSSink struct {
	client *storage.Client
	Bucket string
	Object string
}

// NewGCSSink creates a Cloud Storage client for bucket/object.
func NewGCSSink(ctx context.Context, bucket, object, credentialsFile string) (*GCSSink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSSink{client: client, Bucket: bucket, Object: object}, nil
}

func (s *GCSSink) Write(ctx context.Context, data []byte) error {
	obj := s.client.Bucket(s.Bucket).Object(s.Object)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return fmt.Errorf("failed to copy report to GCS object %s: %w", s.Object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", s.Object, err)
	}
	return nil
}

func (s *GCSSink) String() string { return gcsScheme + s.Bucket + "/" + s.Object }

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

// ParseGCSURL splits gs://bucket/object into its parts.
func ParseGCSURL(dest string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(dest, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not a gs:// URL", ErrInvalidDestination, dest)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%w: %q must be gs://bucket/object", ErrInvalidDestination, dest)
	}
	return bucket, object, nil
}
