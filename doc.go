/*
Package mdsa orchestrates multiple small, domain-specialized language models
behind a single request API.

A request is classified by the intent router, escalated to a human when the
routing confidence is below the threshold, decomposed into dependent tasks
when it is complex, and otherwise executed by the domain's model. Every
request walks a validated state machine:

	INIT → CLASSIFY → VALIDATE_PRE → LOAD_SLM → EXECUTE → VALIDATE_POST → LOG → RETURN

Escalated requests jump from CLASSIFY to RETURN; failures end in ERROR.

# Usage

	o, err := mdsa.New(
		mdsa.WithExecutor(executor.New(models.NewManager(models.NewBackendSet(memory.NewBackend())))),
	)
	if err != nil {
		log.Fatal(err)
	}
	d, _ := domain.Predefined("finance")
	_ = o.RegisterDomain(ctx, d)

	res := o.ProcessRequest(ctx, "Transfer $100 to savings", nil)
	fmt.Println(res.Status, res.Metadata.Domain, res.Response)

Without an executor the orchestrator only routes: results carry the domain
and confidence but no response. Retrieval is enabled with WithRAG and
observability with WithLifecycleHooks (see pkg/observability).
*/
package mdsa
