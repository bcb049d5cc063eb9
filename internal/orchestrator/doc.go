// Package orchestrator runs the review workflow.
//
// The Engine dispatches over a graph.StageGraph: it starts at the supervisor,
// runs whichever stage the routing chose, follows the static edge back to the
// supervisor, and stops at the terminal target or once the state is complete.
// Exactly one stage runs at a time, so revisions are totally ordered.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	final, err := orchestrator.RunWorkflow(ctx, abstract, cfg)
//	if err != nil {
//		return err // construction failed: bad config, unknown provider, invalid graph
//	}
//	fmt.Println(final.Results[models.SlotFinal])
package orchestrator
