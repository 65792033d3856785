// Package catalogtest writes sample HiPSCat-style catalog tiles for tests
// and local experiments.
package catalogtest

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/segmentio/parquet-go"
)

// Object is one row of a sample tile.
//
// Flag holds an 8 bit value. parquet-go cannot write Go int8 fields, so it is
// carried as int32 and annotated INT(8) by Schema.
type Object struct {
	Index int64    `parquet:"_hipscat_index"`
	ID    string   `parquet:"ID"`
	RA    float64  `parquet:"RA"`
	DEC   float64  `parquet:"DEC"`
	MAG   *float32 `parquet:"MAG"`
	Flag  int32    `parquet:"flag"`
	Star  bool     `parquet:"star"`
}

// Metadata is the key-value metadata written into every sample tile.
var Metadata = [][2]string{
	{"hipscat_version", "0.2"},
	{"catalog_name", "splus_sample"},
}

// Schema returns the parquet schema of a sample tile.
func Schema() *parquet.Schema {
	return parquet.NewSchema("catalog", parquet.Group{
		"_hipscat_index": parquet.Int(64),
		"ID":             parquet.String(),
		"RA":             parquet.Leaf(parquet.DoubleType),
		"DEC":            parquet.Leaf(parquet.DoubleType),
		"MAG":            parquet.Optional(parquet.Leaf(parquet.FloatType)),
		"flag":           parquet.Int(8),
		"star":           parquet.Leaf(parquet.BooleanType),
	})
}

// Objects returns n deterministic sample rows. Roughly one row in ten has
// no magnitude.
func Objects(n int, seed int64) []Object {
	rng := rand.New(rand.NewSource(seed))
	objects := make([]Object, n)
	for i := range objects {
		objects[i] = Object{
			Index: int64(i) << 24,
			ID:    fmt.Sprintf("SPLUS-%06d", i),
			RA:    rng.Float64() * 360,
			DEC:   rng.Float64()*180 - 90,
			Flag:  int32(rng.Intn(4)),
			Star:  rng.Intn(2) == 0,
		}
		if rng.Intn(10) != 0 {
			mag := float32(14 + rng.Float64()*8)
			objects[i].MAG = &mag
		}
	}
	return objects
}

// Write encodes objects as a complete parquet file.
func Write(w io.Writer, objects []Object) error {
	options := []parquet.WriterOption{Schema()}
	for _, kv := range Metadata {
		options = append(options, parquet.KeyValueMetadata(kv[0], kv[1]))
	}

	writer := parquet.NewGenericWriter[Object](w, options...)
	if _, err := writer.Write(objects); err != nil {
		return fmt.Errorf("failed to write objects: %w", err)
	}
	return writer.Close()
}

// WriteFile writes objects to path, creating parent directories.
func WriteFile(path string, objects []Object) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(file, objects); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
