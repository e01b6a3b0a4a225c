package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Bundle is a set of files published together under one folder.
type Bundle struct {
	Folder      string
	Files       []string
	Description string
	Metadata    map[string]string
}

// Published lists the object keys written for a bundle.
type Published struct {
	Keys           []string
	DescriptionKey string
}

// Publish uploads every file of the bundle and a <folder>.txt description sidecar.
func (s *S3Client) Publish(ctx context.Context, b Bundle) (Published, error) {
	var out Published
	for _, f := range b.Files {
		key := s.ObjectKey(b.Folder, filepath.Base(f))
		if err := s.UploadFile(ctx, key, f, contentTypeFor(f), b.Metadata); err != nil {
			return out, err
		}
		out.Keys = append(out.Keys, key)
	}
	if b.Description != "" {
		key := s.ObjectKey(b.Folder, b.Folder+".txt")
		if err := s.UploadText(ctx, key, b.Description, b.Metadata); err != nil {
			return out, err
		}
		out.DescriptionKey = key
	}
	log.Info().Str("bucket", s.bucketName).Str("folder", b.Folder).Int("objects", len(out.Keys)).Msg("published split outputs")
	return out, nil
}

// SanitizeMetadata lowercases keys and replaces bytes S3 rejects in header values.
func SanitizeMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[strings.ToLower(k)] = strings.Map(func(r rune) rune {
			if r < 0x20 || r > 0x7e {
				return '_'
			}
			return r
		}, v)
	}
	return out
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
