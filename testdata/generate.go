package main

import (
	"flag"
	"log"

	"github.com/vegasq/parslice/internal/catalogtest"
)

func main() {
	rows := flag.Int("rows", 20000, "Number of rows to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	out := flag.String("o", "Norder=0/Dir=0/Npix=0.parquet", "Output file")
	flag.Parse()

	if err := catalogtest.WriteFile(*out, catalogtest.Objects(*rows, *seed)); err != nil {
		log.Fatal(err)
	}

	log.Printf("Generated %s with %d objects", *out, *rows)
}
