package mdsa_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/mdsa"
	"github.com/aretw0/mdsa/pkg/adapters/memory"
	"github.com/aretw0/mdsa/pkg/domain"
	"github.com/aretw0/mdsa/pkg/executor"
	"github.com/aretw0/mdsa/pkg/models"
)

// ExampleNew routes a request to the finance domain and runs its model on the
// deterministic in-memory backend.
func ExampleNew() {
	manager := models.NewManager(models.NewBackendSet(memory.NewBackend()))
	defer manager.Clear()

	o, err := mdsa.New(mdsa.WithExecutor(executor.New(manager)))
	if err != nil {
		log.Fatal(err)
	}
	defer o.Close()

	ctx := context.Background()
	for _, id := range []string{"finance", "support"} {
		d, _ := domain.Predefined(id)
		if err := o.RegisterDomain(ctx, d); err != nil {
			log.Fatal(err)
		}
	}

	res := o.ProcessRequest(ctx, "Transfer $100 to savings", nil)
	fmt.Println(res.Status, res.Metadata.Domain)
	fmt.Println(res.Response)
	// Output:
	// success finance
	// [gpt2] Processed request: Transfer $100 to savings
}

// ExampleOrchestrator_ProcessRequest_routingOnly shows an orchestrator without
// an executor: it classifies but does not generate.
func ExampleOrchestrator_ProcessRequest_routingOnly() {
	o, err := mdsa.New()
	if err != nil {
		log.Fatal(err)
	}
	defer o.Close()

	ctx := context.Background()
	for _, id := range []string{"finance", "support"} {
		d, _ := domain.Predefined(id)
		_ = o.RegisterDomain(ctx, d)
	}

	res := o.ProcessRequest(ctx, "I want a refund for my order", nil)
	fmt.Println(res.Message)
	// Output:
	// Request routed to support domain
}
