package scopelight

import (
	"context"
	"fmt"
	"os"
	goruntime "runtime"
	"sync"

	"github.com/jward/scopelight/internal/runtime"
	"github.com/jward/scopelight/internal/syntax"
)

// FileRequest asks for a highlight pass over one file on disk.
type FileRequest struct {
	Path       string
	Selections []Selection
}

// FileResult is the outcome of one FileRequest. Err is set when the file
// could not be read or parsed; skippable conditions such as an unknown
// language leave Err nil and Skipped set.
type FileResult struct {
	Path       string
	Language   string
	Source     []byte
	Highlights Highlights
	Skipped    string
	Err        error
}

// workItem holds everything a highlight worker needs.
type workItem struct {
	index int
	req   FileRequest
	lang  string
	src   []byte
}

// HighlightFiles runs a highlight pass over each file:
//
//	Phase A (serial):   language detection and reading.
//	Phase B (parallel): parse and highlight via a worker pool.
//	Phase C (serial):   collect results in request order.
//
// The returned slice always has one entry per request. The error reports
// how many files failed.
func (e *Engine) HighlightFiles(ctx context.Context, reqs []FileRequest) ([]FileResult, error) {
	results := make([]FileResult, len(reqs))

	// ---- Phase A: serial preparation ----
	var items []workItem
	for i, req := range reqs {
		results[i].Path = req.Path
		lang, ok := runtime.LanguageForFile(req.Path)
		if !ok {
			results[i].Skipped = "unsupported file type"
			continue
		}
		results[i].Language = lang
		src, err := os.ReadFile(req.Path)
		if err != nil {
			results[i].Err = fmt.Errorf("read file: %w", err)
			continue
		}
		results[i].Source = src
		items = append(items, workItem{index: i, req: req, lang: lang, src: src})
	}

	// ---- Phase B: parallel highlighting ----
	numWorkers := max(min(goruntime.NumCPU(), len(items)), 1)

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		index int
		h     Highlights
		err   error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				h, err := e.highlightFile(ctx, item)
				resultCh <- result{index: item.index, h: h, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: serial collection ----
	for res := range resultCh {
		r := &results[res.index]
		r.Highlights = res.h
		switch {
		case res.err == nil:
		case skippable(res.err):
			r.Skipped = res.err.Error()
		default:
			r.Err = res.err
		}
	}

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("highlight %s: %w", r.Path, r.Err))
		}
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("scopelight: %d file(s) failed: %w", len(errs), errs[0])
	}
	return results, nil
}

// highlightFile parses one file and runs a pass. Each call gets its own
// parser, so workers never share tree-sitter state.
func (e *Engine) highlightFile(ctx context.Context, item workItem) (Highlights, error) {
	grammar, _ := runtime.ParserForLanguage(item.lang)
	version := e.fileVersions.Add(1)
	doc, err := syntax.Parse(ctx, BufferID(item.req.Path), version, item.lang, grammar, item.src)
	if err != nil {
		return Highlights{}, err
	}
	return e.Highlight(ctx, doc, item.req.Selections)
}
