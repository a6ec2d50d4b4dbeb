package handlers

import (
	"context"

	"github.com/infobridge/infobridge/backend"
	"github.com/infobridge/infobridge/query"
)

// stageResult is what a pipeline stage produced. done stops the pipeline
// and returns result.
type stageResult struct {
	result backend.Result
	done   bool
}

type stage func(ctx context.Context, client backend.Client, stmt *query.Statement) (stageResult, error)

func finished(res backend.Result) stageResult {
	return stageResult{result: res, done: true}
}

var proceed = stageResult{}

// runPipeline runs stages in order until one is done or fails.
func runPipeline(ctx context.Context, client backend.Client, stmt *query.Statement, stages ...stage) (backend.Result, error) {
	for _, s := range stages {
		out, err := s(ctx, client, stmt)
		if err != nil {
			return nil, err
		}
		if out.done {
			return out.result, nil
		}
	}
	return nil, query.NewFatalRewriteError("no stage produced a result")
}
