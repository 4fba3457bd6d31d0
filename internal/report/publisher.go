package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/frontscan/internal/repository"
	"github.com/frontscan/internal/storage"
	"github.com/frontscan/pkg/errors"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
	"github.com/frontscan/pkg/writer"
)

// Publisher writes report artifacts and records the run. Storage and
// repository are both optional: a nil collaborator skips that step.
type Publisher struct {
	store  storage.Storage
	repo   repository.Repository
	logger utils.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(store storage.Storage, repo repository.Repository, logger utils.Logger) *Publisher {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Publisher{store: store, repo: repo, logger: logger}
}

// ReportKey returns the artifact key for a run's report.
func ReportKey(runUUID string) string {
	return fmt.Sprintf("runs/%s/report.json", runUUID)
}

// ChainGraphKey returns the artifact key for a run's retention graph.
func ChainGraphKey(runUUID string) string {
	return fmt.Sprintf("runs/%s/chains.json.gz", runUUID)
}

// Publish persists the run, uploads the report and its retention graph, and
// returns the report's storage URL (empty without storage).
func (p *Publisher) Publish(ctx context.Context, runUUID string, report *model.AnalysisReport) (string, error) {
	if p.repo != nil {
		run, leaks := repository.FromResult(runUUID, report.Framework, report.Result)
		if err := p.repo.SaveRun(ctx, run, leaks); err != nil {
			return "", err
		}
	}

	if p.store == nil {
		return "", nil
	}

	reportKey := ReportKey(runUUID)
	var buf bytes.Buffer
	if err := writer.NewPrettyJSONWriter[*model.AnalysisReport]().Write(report, &buf); err != nil {
		return "", errors.Wrap(errors.CodeReportError, "failed to encode report", err)
	}
	if err := p.store.Upload(ctx, reportKey, &buf); err != nil {
		return "", errors.Wrap(errors.CodeStorageError, "failed to upload report", err)
	}

	if len(report.Chains) > 0 {
		var graphBuf bytes.Buffer
		graph := BuildChainGraph(report)
		if err := writer.NewGzipJSONWriter[*ChainGraph]().Write(graph, &graphBuf); err != nil {
			return "", errors.Wrap(errors.CodeReportError, "failed to encode chain graph", err)
		}
		if err := p.store.Upload(ctx, ChainGraphKey(runUUID), &graphBuf); err != nil {
			return "", errors.Wrap(errors.CodeStorageError, "failed to upload chain graph", err)
		}
	}

	if p.repo != nil {
		if err := p.repo.UpdateReportKey(ctx, runUUID, reportKey); err != nil {
			return "", err
		}
	}

	url := p.store.URL(reportKey)
	p.logger.Info("report published: %s", url)
	return url, nil
}
