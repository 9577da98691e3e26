package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gyeh/logstats/internal/logparse"
	"github.com/gyeh/logstats/internal/model"
	"github.com/gyeh/logstats/internal/normalize"
	"github.com/gyeh/logstats/internal/objstore"
	"github.com/gyeh/logstats/internal/source"
)

// Input is the raw material of one job: uploaded bytes or an external
// source.
type Input interface {
	// Label names the input in job records and failure messages.
	Label() string
	load(ctx context.Context, d *logparse.Detector) (loaded, error)
}

type loaded struct {
	records []model.LogRecord
	summary model.ParseSummary
	sha     string
}

// RawInput is file content; Name doubles as the format hint.
type RawInput struct {
	Name string
	Data []byte
}

func (in RawInput) Label() string { return in.Name }

func (in RawInput) load(ctx context.Context, d *logparse.Detector) (loaded, error) {
	if err := ctx.Err(); err != nil {
		return loaded{}, err
	}
	records, sum := d.Parse(in.Data, in.Name)
	return loaded{records: records, summary: sum, sha: normalize.Hash(in.Data)}, nil
}

// SourceInput pulls rows from an external source.
type SourceInput struct {
	Source source.Source
}

func (in SourceInput) Label() string { return in.Source.Name() }

func (in SourceInput) load(ctx context.Context, d *logparse.Detector) (loaded, error) {
	rows, header, err := in.Source.Rows(ctx)
	if err != nil {
		return loaded{}, fmt.Errorf("fetch rows: %w", err)
	}
	records, sum := d.Mapper().MapTable(rows, header)
	return loaded{records: records, summary: sum}, nil
}

// ObjectGetter downloads objects from a bucket.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// LoadInput reads a local file or an s3://bucket/key object. It returns the
// input and the job source it came from.
func LoadInput(ctx context.Context, location string, objects ObjectGetter) (RawInput, string, error) {
	if objstore.IsURI(location) {
		if objects == nil {
			return RawInput{}, "", fmt.Errorf("%s: object storage is not configured", location)
		}
		bucket, key, err := objstore.ParseURI(location)
		if err != nil {
			return RawInput{}, "", err
		}
		data, err := objects.Get(ctx, bucket, key)
		if err != nil {
			return RawInput{}, "", err
		}
		return RawInput{Name: path.Base(key), Data: data}, model.SourceS3, nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return RawInput{}, "", fmt.Errorf("read input: %w", err)
	}
	return RawInput{Name: filepath.Base(location), Data: data}, model.SourceFile, nil
}
