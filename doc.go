// Package graphbeam searches for connected graphs of bounded degree with small
// average distance, one vertex at a time.
//
// Every level holds graphs on n vertices, split into buckets by edge count.
// Each bucket keeps the best P graphs ranked by sum of pairwise distances and
// then by diameter, with isomorphic copies removed through a canonical form.
// The next level is built by adding one vertex to every retained graph in all
// ways that respect the degree bound.
//
// # Quick Start
//
//	res, err := graphbeam.Search(ctx,
//	    graphbeam.WithMaxDegree(3),
//	    graphbeam.WithCapacity(200),
//	    graphbeam.WithLevels(4, 14),
//	    graphbeam.WithWorkers(8),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	best, _ := res.Best()
//	fmt.Println(best)
//
// # Distribution
//
// Work is spread over a tree of nodes. The root hands out graphs of the
// current level to whichever child asks first; relays forward them to their
// own children; workers extend them. A level is finished only when every
// graph has been extended and every accumulator merged back into the root,
// so no worker ever starts on level n+1 while level n is still being handed
// out. Search runs the whole tree in one process; the cluster package and the
// graphbeam command run one node per process over websockets.
//
// # Reports
//
// A Result can be written as text or JSON and published to any
// blobstore.Store (local directory, S3, MinIO):
//
//	err = res.Publish(ctx, blobstore.NewLocalStore("out"), "n14-d3", codec.Default)
package graphbeam
