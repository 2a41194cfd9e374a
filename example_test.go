package quantpool_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/quantpool"
)

func ExampleBuilder() {
	b := quantpool.NewBuilder(quantpool.WithShuffle(false))

	if err := b.Start(quantpool.Metadata{FeatureCount: 2}, 4, []uint32{1}); err != nil {
		log.Fatal(err)
	}
	if err := b.StartNextBlock(4); err != nil {
		log.Fatal(err)
	}

	prices := []float32{9.99, 24.5, 24.5, 100}
	colors := []string{"red", "blue", "red", "green"}
	clicks := []float32{0, 1, 1, 0}

	for i := 0; i < 4; i++ {
		if err := b.WriteFloat(0, i, prices[i]); err != nil {
			log.Fatal(err)
		}
		if err := b.WriteCategoricalString(1, i, colors[i]); err != nil {
			log.Fatal(err)
		}
		if err := b.WriteTarget(i, clicks[i]); err != nil {
			log.Fatal(err)
		}
	}

	ds, err := b.Finish(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	for _, col := range ds.Columns() {
		fmt.Printf("feature %d: %v\n", col.FeatureID(), col.Packed().Decompress())
	}
	// Output:
	// feature 0: [0 1 1 2]
	// feature 1: [0 1 0 2]
}
