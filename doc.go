// Package ekg builds event knowledge graphs in Neo4j from a declarative
// schema.
//
// A schema document names record types and the entity and relation types
// constructed from them. The pipeline compiles each constructor into a
// parameterized Cypher template and runs the templates in seven ordered
// phases through a batch engine that halves the batch size and retries
// when a batch fails:
//
//  1. nodes from records
//  2. relations from records
//  3. relations from subgraphs
//  4. nodes from subgraphs (reification)
//  5. directly-follows inference
//  6. duplicate directly-follows merging
//  7. parallel directly-follows deletion
//
// # Getting Started
//
//	cfg, err := config.Load("ekg.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := ekg.Open(ctx, cfg, ekg.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	report, err := client.Build(ctx, pipeline.Request{})
//	if err != nil {
//		var perr *pipeline.PipelineError
//		if errors.As(err, &perr) {
//			log.Printf("phase %s failed for %s", perr.Phase, perr.Type)
//		}
//		log.Fatal(err)
//	}
//
// # Inference Hooks
//
// Types constructed by inference name a hook. Hooks are registered on a
// pipeline.HookRegistry passed with WithHooks; an unregistered hook is
// skipped with a warning.
//
// # Run Journal
//
// When a Redis URL is configured, runs take a lock so two runs never build
// the same graph concurrently, and every phase and step is journaled under
// the run ID.
package ekg
