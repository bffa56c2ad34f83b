// Package kmeanslab provides an interactive, steppable k-means clustering engine.
//
// A Session partitions a set of D-dimensional points (typically 2-D) into k
// clusters. Instead of hiding Lloyd's algorithm behind a single call, the
// session is a small state machine that a caller can advance one
// assign/update cycle at a time, which is what an interactive visualization
// needs.
//
// # Quick Start
//
//	ctx := context.Background()
//	s := kmeanslab.NewSession(kmeanslab.WithSeed(42))
//
//	cfg := kmeanslab.Config{K: 3, Init: kmeanslab.InitKMeansPlusPlus, MaxIter: 100}
//	if err := s.Initialize(ctx, cfg, points, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    res, err := s.Step(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    draw(res.Centroids, res.Labels)
//	    if res.Converged {
//	        break
//	    }
//	}
//
// Or run to completion:
//
//	res, _ := s.Run(ctx)
//	if res.CapReached {
//	    // MaxIter cycles ran without the centroids settling.
//	}
//
// # Initialization
//
//   - InitRandom: k distinct points chosen uniformly at random
//   - InitFarthest: maximin seeding, each next centroid is the point farthest
//     from its nearest chosen centroid
//   - InitKMeansPlusPlus: k-means++ sampling proportional to squared distance
//   - InitManual: caller supplied centroids
//
// # Lifecycle
//
//	Uninitialized --Initialize--> Initialized --Step--> Stepping --Step--> Converged
//	      ^                                                                    |
//	      +------------------------------ Reset ------------------------------+
//
// Every error returned by a Session is an *Error whose Kind is
// KindConfiguration (bad input) or KindRuntime (the operation cannot run in
// the current state). Sentinels such as ErrInvalidK or ErrNotInitialized can
// be matched with errors.Is.
//
// # Concurrency
//
// A Session is not safe for concurrent use. The HTTP service in
// internal/server keeps one session per client and serializes access with a
// per-session lock.
package kmeanslab
