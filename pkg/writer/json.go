// Package writer provides JSON and gzipped-JSON writers for report artifacts.
package writer

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONWriter writes data as JSON.
type JSONWriter[T any] struct {
	// Indent specifies the indentation for pretty printing.
	// Empty string means compact output.
	Indent string
}

// NewJSONWriter creates a new JSON writer with compact output.
func NewJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{}
}

// NewPrettyJSONWriter creates a JSON writer with pretty printing.
func NewPrettyJSONWriter[T any]() *JSONWriter[T] {
	return &JSONWriter[T]{Indent: "  "}
}

// Write writes the data as JSON to the writer.
func (w *JSONWriter[T]) Write(data T, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	if w.Indent != "" {
		encoder.SetIndent("", w.Indent)
	}
	return encoder.Encode(data)
}

// WriteToFile writes the data as JSON to a file.
func (w *JSONWriter[T]) WriteToFile(data T, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return w.Write(data, file)
}

// GzipJSONWriter writes data as gzipped JSON.
type GzipJSONWriter[T any] struct {
	// Level is the gzip compression level.
	Level int
}

// NewGzipJSONWriter creates a new gzip writer with default compression.
func NewGzipJSONWriter[T any]() *GzipJSONWriter[T] {
	return &GzipJSONWriter[T]{Level: gzip.DefaultCompression}
}

// Write writes the data as gzipped JSON to the writer.
func (w *GzipJSONWriter[T]) Write(data T, writer io.Writer) error {
	gz, err := gzip.NewWriterLevel(writer, w.Level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if err := json.NewEncoder(gz).Encode(data); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return gz.Close()
}

// WriteToFile writes the data as gzipped JSON to a file.
func (w *GzipJSONWriter[T]) WriteToFile(data T, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return w.Write(data, file)
}
