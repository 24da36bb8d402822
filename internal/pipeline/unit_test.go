package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/database"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/report"
)

func TestUnitFactory_EndToEnd(t *testing.T) {
	t.Parallel()

	srv := newLinkSite(t)
	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	build := func(name string, opts ...crawler.Option) (crawler.Runner, error) {
		return crawler.NewCollector(linkUnit(name, srv.URL+"/"), opts...)
	}

	var out bytes.Buffer
	f := NewUnitFactory(build,
		WithJournalDB(db),
		WithReportWriter(report.NewJSONWriter(&out)),
		WithCrawlerOptions(
			crawler.WithHTTPClient(http.DefaultClient),
			crawler.WithLogger(discardLogger()),
			crawler.WithRetryPolicy(noRetry()),
		),
		WithFactoryLogger(discardLogger()),
	)

	p, rep, err := f.Build(t.Context(), "links")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if rep.RunID == 0 {
		t.Fatal("run was not opened in the journal")
	}
	if rep.StartURL != srv.URL+"/" {
		t.Errorf("StartURL = %q", rep.StartURL)
	}
	wantSteps := []string{"crawl", "journal", "report"}
	if got := p.StepNames(); len(got) != 3 || got[0] != wantSteps[0] || got[1] != wantSteps[1] || got[2] != wantSteps[2] {
		t.Errorf("StepNames() = %v, want %v", got, wantSteps)
	}

	if err := p.Execute(t.Context(), rep); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// index, /b and /missing
	if rep.Stats.Visited != 2 || rep.Stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 visited and 1 failed", rep.Stats)
	}

	visits, err := db.ListVisits(t.Context(), rep.RunID)
	if err != nil {
		t.Fatalf("ListVisits() error = %v", err)
	}
	if len(visits) != 3 {
		t.Errorf("journaled %d visits, want 3", len(visits))
	}

	run, err := db.GetRun(t.Context(), rep.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != database.StatusCompleted || run.StartURL != srv.URL+"/" {
		t.Errorf("stored run = %+v", run)
	}

	var decoded model.CrawlReport
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if decoded.Unit != "links" || decoded.RunID != rep.RunID {
		t.Errorf("rendered report = %+v", decoded)
	}
}

func TestUnitFactory_BuildFailure(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	build := func(name string, opts ...crawler.Option) (crawler.Runner, error) {
		return crawler.NewCollector(linkUnit(name, "not a url"), opts...)
	}

	f := NewUnitFactory(build, WithJournalDB(db), WithFactoryLogger(discardLogger()))
	p, rep, err := f.Build(t.Context(), "broken")
	if !errors.Is(err, crawler.ErrInvalidStartURL) {
		t.Fatalf("expected ErrInvalidStartURL, got %v", err)
	}
	if p != nil {
		t.Error("expected no pipeline")
	}
	if rep == nil || rep.Error == nil {
		t.Fatal("expected report carrying the error")
	}

	run, err := db.LatestRun(t.Context(), "broken")
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if run == nil || run.Status != database.StatusFailed {
		t.Errorf("stored run = %+v, want failed", run)
	}
}

func TestUnitFactory_WithoutJournal(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{name: "foo", startURL: "https://example.com/"}
	var gotOpts int
	build := func(_ string, opts ...crawler.Option) (crawler.Runner, error) {
		gotOpts = len(opts)
		return runner, nil
	}

	f := NewUnitFactory(build, WithCrawlerOptions(crawler.WithLogger(discardLogger())))
	p, rep, err := f.Build(t.Context(), "foo")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if gotOpts != 1 {
		t.Errorf("builder got %d options, want 1", gotOpts)
	}
	if rep.RunID != 0 {
		t.Errorf("RunID = %d without journal", rep.RunID)
	}
	if names := p.StepNames(); len(names) != 1 || names[0] != "crawl" {
		t.Errorf("StepNames() = %v, want [crawl]", names)
	}
}
