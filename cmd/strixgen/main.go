// strixgen generates model accessor packages from a JSON descriptor file.
//
// Usage:
//
//	strixgen -descriptors models.json -target ./models
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/strixdb/strix/gen"
)

func main() {
	var (
		descriptors = flag.String("descriptors", "models.json", "path to the model descriptor file")
		target      = flag.String("target", ".", "output directory for generated packages")
		workers     = flag.Int("workers", 0, "generation parallelism (0 = GOMAXPROCS)")
	)
	flag.Parse()

	types, err := gen.Load(*descriptors)
	if err != nil {
		fail(err)
	}
	graph, err := gen.NewGraph(&gen.Config{Target: *target, Workers: *workers}, types...)
	if err != nil {
		fail(err)
	}
	if err := gen.Generate(context.Background(), graph); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "strixgen:", err)
	os.Exit(1)
}
