package main

import (
	"crypto/sha256"
	"regexp"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_financial_facts.sql", true, "0001", "create_financial_facts"},
		{"0002_create_ingestion_batches.sql", true, "0002", "create_ingestion_batches"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := pattern.FindStringSubmatch(tt.filename)
			if (matches != nil) != tt.valid {
				t.Fatalf("pattern match = %v, want valid=%v", matches != nil, tt.valid)
			}
			if !tt.valid {
				return
			}
			if matches[1] != tt.version || matches[2] != tt.name {
				t.Errorf("parsed %q/%q, want %q/%q", matches[1], matches[2], tt.version, tt.name)
			}
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	content1 := []byte("CREATE TABLE test (id INT64);")
	content2 := []byte("CREATE TABLE test (id INT64);")
	content3 := []byte("CREATE TABLE different (id INT64);")

	if sha256.Sum256(content1) != sha256.Sum256(content2) {
		t.Error("Same content should produce the same checksum")
	}
	if sha256.Sum256(content1) == sha256.Sum256(content3) {
		t.Error("Different content should produce different checksums")
	}
}
