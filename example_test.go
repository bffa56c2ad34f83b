package kmeanslab_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/kmeanslab"
)

// Example_manual demonstrates stepping a session with caller supplied centroids.
func Example_manual() {
	ctx := context.Background()

	points := [][]float64{{0, 0}, {0, 1}, {10, 0}, {10, 1}}

	s := kmeanslab.NewSession(kmeanslab.WithSeed(42))

	cfg := kmeanslab.Config{K: 2, Init: kmeanslab.InitManual, MaxIter: 10}
	if err := s.Initialize(ctx, cfg, points, [][]float64{{0, 0}, {10, 0}}); err != nil {
		log.Fatal(err)
	}

	for {
		res, err := s.Step(ctx)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(res.Iteration, res.Labels, res.Centroids, res.Converged)

		if res.Converged {
			break
		}
	}
	// Output:
	// 1 [0 0 1 1] [[0 0.5] [10 0.5]] false
	// 2 [0 0 1 1] [[0 0.5] [10 0.5]] true
}

// Example_run demonstrates running a k-means++ session to convergence.
func Example_run() {
	ctx := context.Background()

	points := [][]float64{{1, 1}, {1.5, 2}, {3, 4}, {5, 7}, {3.5, 5}, {4.5, 5}, {3.5, 4.5}}

	s := kmeanslab.NewSession(kmeanslab.WithSeed(7))
	if err := s.Initialize(ctx, kmeanslab.Config{K: 2, Init: kmeanslab.InitKMeansPlusPlus, MaxIter: 100}, points, nil); err != nil {
		log.Fatal(err)
	}

	res, err := s.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(res.Converged, res.CapReached)
	// Output: true false
}

// Example_predict demonstrates labelling new points.
func Example_predict() {
	ctx := context.Background()

	s := kmeanslab.NewSession()

	cfg := kmeanslab.Config{K: 2, Init: kmeanslab.InitManual, MaxIter: 10}
	if err := s.Initialize(ctx, cfg, [][]float64{{0, 0}, {10, 10}}, [][]float64{{0, 0}, {10, 10}}); err != nil {
		log.Fatal(err)
	}

	labels, err := s.Predict(ctx, [][]float64{{1, 1}, {9, 8}, {-3, 2}})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(labels)
	// Output: [0 1 0]
}

// Example_errors demonstrates classifying errors.
func Example_errors() {
	s := kmeanslab.NewSession()

	_, err := s.Step(context.Background())

	fmt.Println(kmeanslab.KindOf(err))
	// Output: runtime
}
