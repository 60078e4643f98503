// Package temporal provides Temporal workflow client integration for the
// generation service.
//
// This package handles workflow client initialization, workflow/activity
// registration, and worker lifecycle management.
//
// # Overview
//
// The temporal package provides:
//
//   - Client: Temporal client wrapper for starting/managing workflows
//   - Worker: Worker process for executing workflows and activities
//   - Workflow definition for generation-job orchestration
//   - Activity implementations for the collection, section, and citation steps
//
// # Client Setup
//
// Create a Temporal client:
//
//	cfg := temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "genpaper",
//	    TaskQueue: "generation-tasks",
//	}
//
//	client, err := temporal.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// Wrap it to start jobs:
//
//	wfClient := temporal.NewGenerationWorkflowClient(client, cfg.TaskQueue)
//	workflowID, runID, err := wfClient.StartGenerationWorkflow(ctx,
//	    workflows.GenerationWorkflow, temporal.GenerationWorkflowInput{
//	        JobID: job.ID,
//	        Topic: job.Topic,
//	    })
//
// # Worker Setup
//
// The worker process registers the workflow and the activity structs and
// polls the task queue:
//
//	manager, err := temporal.NewWorkerManager(client, temporal.DefaultWorkerConfig("generation-tasks"))
//	manager.RegisterWorkflow(workflows.GenerationWorkflow)
//	manager.RegisterActivity(collectionActivities)
//	manager.RegisterActivity(sectionActivities)
//	manager.RegisterActivity(citationActivities)
//	manager.RegisterActivity(jobActivities)
//	manager.RegisterActivity(eventActivities)
//	err = manager.Start(ctx)
//
// # Progress and Cancellation
//
// A running workflow answers the "progress" query with a domain.Progress
// report and stops cooperatively when the "cancel" signal arrives. Both are
// exposed on GenerationWorkflowClient as GetProgress and CancelWorkflow.
package temporal
