// Package cvsearch embeds the cvsearch record index in a Go program.
//
// The client talks to Redis (with the search and JSON modules) or to a
// local SQLite file directly, without the HTTP server.
//
//	client, _ := cvsearch.New(ctx,
//	    cvsearch.WithSQLite("data/cv.db"),
//	    cvsearch.WithEmbedder(myEmbedder),
//	    cvsearch.WithVectorDimensions(1024),
//	)
//	defer client.Close()
//
//	_, _ = client.Records().Ingest(ctx, []cvsearch.Record{{
//	    ID:       "alice",
//	    Content:  "Senior Go engineer, Kubernetes operators",
//	    Metadata: cvsearch.Metadata{Skills: []string{"go", "kubernetes"}, Experience: 6},
//	}})
//
//	res, _ := client.Find("platform engineer").
//	    Skills("go").
//	    Experience(3, 10).
//	    Where("city", "berlin").
//	    Limit(20).
//	    Do(ctx)
//
// Without an embedder, records are stored without vectors and automatic
// searches run on the text path.
package cvsearch
