package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"datadesigner/internal/logging"
	"datadesigner/internal/nemo"
	"datadesigner/internal/schema"
)

func (t *Toolset) jobTools() []*Tool {
	return []*Tool{
		{
			Name: "create_job",
			Description: "Submit the session's schema as a generation job on the remote service. " +
				"Returns the job id to poll with get_job_status.",
			Category: CategoryJob,
			Priority: 90,
			Schema: ToolSchema{
				Required: []string{"num_records"},
				Properties: map[string]Property{
					"session_id":  sessionProperty,
					"name":        {Type: "string", Description: "Human-readable job name; generated when omitted"},
					"num_records": {Type: "number", Description: "Number of rows to generate"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				sessionID := sessionArg(args)
				b, report := t.loadBuilder(ctx, sessionID)

				name := strArg(args, "name", "")
				if name == "" {
					name = "dataset-" + uuid.NewString()[:8]
				}
				payload, err := schema.BuildWirePayload(b,
					name,
					intArg(args, "num_records", 0),
					t.client.Project())
				if err != nil {
					return errResult(err), nil
				}

				jobID, err := t.client.CreateJob(ctx, payload)
				if err != nil {
					return "", fmt.Errorf("submit job: %w", err)
				}

				result := map[string]interface{}{
					"job_id":      jobID,
					"name":        payload.Name,
					"num_records": payload.Spec.NumRecords,
					"status":      "submitted",
				}
				if !report.Clean() {
					result["reconstruction_warnings"] = report
				}
				return jsonResult(result), nil
			},
		},
		{
			Name:        "get_job_status",
			Description: "Check the status of a generation job. Poll until the status is terminal.",
			Category:    CategoryJob,
			Priority:    80,
			Schema: ToolSchema{
				Required: []string{"job_id"},
				Properties: map[string]Property{
					"job_id": {Type: "string", Description: "Job id from create_job"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				jobID := strArg(args, "job_id", "")
				status, err := t.client.GetJobStatus(ctx, jobID)
				if err != nil {
					return "", fmt.Errorf("job status: %w", err)
				}

				result := map[string]interface{}{
					"job_id":   jobID,
					"status":   status,
					"terminal": nemo.IsTerminal(status),
				}
				if nemo.IsTerminalFailure(status) {
					if detail, derr := t.client.GetJob(ctx, jobID); derr == nil && detail.ErrorDetails != "" {
						result["error_details"] = detail.ErrorDetails
					}
				}
				return jsonResult(result), nil
			},
		},
		{
			Name: "import_results",
			Description: "Download a finished job's dataset and import it into the local viewer database. " +
				"Only call once the job status is a terminal success.",
			Category: CategoryJob,
			Priority: 70,
			Schema: ToolSchema{
				Required: []string{"job_id"},
				Properties: map[string]Property{
					"job_id": {Type: "string", Description: "Job id of a completed job"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				jobID := strArg(args, "job_id", "")
				files, err := t.client.DownloadResults(ctx, jobID, t.outputDir)
				if err != nil {
					return "", fmt.Errorf("download results: %w", err)
				}

				result := map[string]interface{}{
					"job_id": jobID,
					"files":  files,
				}

				if t.datasets != nil {
					var tables []string
					for _, f := range files {
						table, ierr := t.datasets.ImportFile(f)
						if ierr != nil {
							logging.DatasetError("import %s: %v", f, ierr)
							continue
						}
						tables = append(tables, table)
					}
					result["tables"] = tables
				}

				return jsonResult(result), nil
			},
		},
		{
			Name:        "download_results",
			Description: "Download a finished job's result files without importing them into the viewer.",
			Category:    CategoryJob,
			Schema: ToolSchema{
				Required: []string{"job_id"},
				Properties: map[string]Property{
					"job_id": {Type: "string", Description: "Job id of a completed job"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				jobID := strArg(args, "job_id", "")
				files, err := t.client.DownloadResults(ctx, jobID, t.outputDir)
				if err != nil {
					return "", fmt.Errorf("download results: %w", err)
				}
				return jsonResult(map[string]interface{}{
					"job_id": jobID,
					"files":  files,
				}), nil
			},
		},
		{
			Name:        "cancel_job",
			Description: "Cancel a running generation job.",
			Category:    CategoryJob,
			Schema: ToolSchema{
				Required: []string{"job_id"},
				Properties: map[string]Property{
					"job_id": {Type: "string", Description: "Job id to cancel"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				jobID := strArg(args, "job_id", "")
				if err := t.client.CancelJob(ctx, jobID); err != nil {
					return "", fmt.Errorf("cancel job: %w", err)
				}
				return jsonResult(map[string]string{"job_id": jobID, "status": "cancel_requested"}), nil
			},
		},
		{
			Name:        "get_job_logs",
			Description: "Fetch the execution logs of a job, useful when a job failed.",
			Category:    CategoryJob,
			Schema: ToolSchema{
				Required: []string{"job_id"},
				Properties: map[string]Property{
					"job_id": {Type: "string", Description: "Job id"},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				jobID := strArg(args, "job_id", "")
				logs, err := t.client.GetJobLogs(ctx, jobID)
				if err != nil {
					return "", fmt.Errorf("job logs: %w", err)
				}
				return jsonResult(map[string]string{"job_id": jobID, "logs": logs}), nil
			},
		},
		{
			Name: "preview_data",
			Description: "Generate a handful of sample records from the session's schema without creating a job. " +
				"Use to sanity-check the schema before submission.",
			Category: CategoryJob,
			Schema: ToolSchema{
				Properties: map[string]Property{
					"session_id":  sessionProperty,
					"num_records": {Type: "number", Description: "Sample size", Default: 5},
				},
			},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				b, _ := t.loadBuilder(ctx, sessionArg(args))
				cfg, err := schema.WireConfig(b)
				if err != nil {
					return errResult(err), nil
				}
				records, err := t.client.Preview(ctx, cfg, intArg(args, "num_records", 5))
				if err != nil {
					return "", fmt.Errorf("preview: %w", err)
				}
				return jsonResult(map[string]interface{}{"records": records}), nil
			},
		},
		{
			Name:        "check_service_health",
			Description: "Check whether the remote data designer service is reachable.",
			Category:    CategoryGeneral,
			Schema:      ToolSchema{},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				if err := t.client.Health(ctx); err != nil {
					return jsonResult(map[string]interface{}{"healthy": false, "error": err.Error()}), nil
				}
				return jsonResult(map[string]interface{}{"healthy": true}), nil
			},
		},
		{
			Name:        "list_datasets",
			Description: "List the dataset tables imported into the local viewer database.",
			Category:    CategoryDataset,
			Schema:      ToolSchema{},
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				if t.datasets == nil {
					return errResult(fmt.Errorf("no viewer database configured")), nil
				}
				tables, err := t.datasets.Tables()
				if err != nil {
					return "", fmt.Errorf("list datasets: %w", err)
				}
				if tables == nil {
					tables = []string{}
				}
				return jsonResult(map[string]interface{}{"tables": tables}), nil
			},
		},
	}
}
