// Command gen-recording writes a synthetic recording for testing the pipeline
// and the stream service.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/olala7846/car-data-visualization/internal/recording"
	"github.com/olala7846/car-data-visualization/internal/synthetic"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

func main() {
	output := flag.String("o", "sample.tfrecord", "output path")
	frames := flag.Int("n", 20, "number of frames")
	segment := flag.String("segment", "synthetic-segment", "context name of the generated frames")
	seed := flag.Int64("seed", 1, "random seed")
	compression := flag.String("compression", "", "whole-file compression: gzip, zlib or empty")
	flag.Parse()

	c, err := recording.ParseCompression(*compression)
	if err != nil {
		log.Fatalf("invalid -compression: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *output, err)
	}
	defer f.Close()

	w, err := recording.NewWriter(f, c)
	if err != nil {
		log.Fatalf("failed to create writer: %v", err)
	}

	gen := synthetic.NewGenerator(*segment, *seed)
	for i := 0; i < *frames; i++ {
		frame, err := gen.Next()
		if err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		if err := w.Write(waymo.Encode(frame)); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
		if (i+1)%10 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}
	if err := w.Close(); err != nil {
		log.Fatalf("failed to finish recording: %v", err)
	}
	log.Printf("Created: %s (%d frames)", *output, w.Count())
}
