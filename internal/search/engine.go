package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ragindex/ragindex/internal/cache"
	"github.com/ragindex/ragindex/internal/embed"
	ragerrors "github.com/ragindex/ragindex/internal/errors"
	"github.com/ragindex/ragindex/internal/fingerprint"
	"github.com/ragindex/ragindex/internal/index"
)

// Engine runs fan-out queries over per-file indices. Shards share the
// process-wide embedder and index cache, so a 30-shard call pays for one
// model load, not thirty.
type Engine struct {
	cache     *cache.Cache
	embedder  embed.Embedder
	storeRoot string
}

// NewEngine creates an engine over the per-file index store at storeRoot.
func NewEngine(c *cache.Cache, e embed.Embedder, storeRoot string) *Engine {
	return &Engine{
		cache:     c,
		embedder:  e,
		storeRoot: storeRoot,
	}
}

// MultiQuery runs each question over the selected shards and aggregates
// per-question results. Shard failures are isolated and reported; the call
// fails only when every shard of a question fails, or on invalid input.
func (e *Engine) MultiQuery(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := e.validate(&req); err != nil {
		return nil, err
	}
	dirs := e.shardDirs(req)

	resp := &Response{
		Results: make([]QueryResult, 0, len(req.Queries)),
	}
	for _, q := range req.Queries {
		qr, err := e.runQuery(ctx, q, dirs, req)
		if err != nil {
			return nil, err
		}
		resp.Stats.FailedShards += len(qr.Failed)
		resp.Results = append(resp.Results, *qr)
	}

	resp.Stats.Queries = len(req.Queries)
	resp.Stats.Shards = len(dirs) * len(req.Queries)
	resp.Stats.Elapsed = time.Since(start)
	return resp, nil
}

// validate normalizes a request in place.
func (e *Engine) validate(req *Request) error {
	if len(req.Queries) == 0 {
		return ragerrors.New(ragerrors.ErrCodeQueryEmpty, "no queries given", nil)
	}
	if len(req.Queries) > MaxQueriesPerCall {
		return ragerrors.ValidationError("too many queries in one call", nil).
			WithDetail("max", "3")
	}
	if len(req.SourceHashes) == 0 && len(req.ExternalSources) == 0 {
		return ragerrors.ValidationError("no shards selected", nil)
	}
	for _, fp := range req.SourceHashes {
		if !fingerprint.IsValid(fp) {
			return ragerrors.ValidationError("malformed source hash: "+fp, nil)
		}
	}

	if req.TopKPerSource <= 0 {
		req.TopKPerSource = DefaultKPerShard
	}
	if req.TopKPerSource > MaxKPerShard {
		req.TopKPerSource = MaxKPerShard
	}
	if req.MaxWorkers <= 0 {
		req.MaxWorkers = DefaultMaxWorkers
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultShardTimeout
	}
	return nil
}

// shardDirs resolves the request's shard selection to index directories.
type shardDir struct {
	fp  string
	dir string
}

func (e *Engine) shardDirs(req Request) []shardDir {
	dirs := make([]shardDir, 0, len(req.SourceHashes)+len(req.ExternalSources))
	for _, fp := range req.SourceHashes {
		dirs = append(dirs, shardDir{fp: fp, dir: index.PerFileDir(e.storeRoot, fp)})
	}
	for _, ext := range req.ExternalSources {
		dirs = append(dirs, shardDir{fp: ext, dir: ext})
	}
	return dirs
}

// runQuery fans one question out over all shards with bounded concurrency.
func (e *Engine) runQuery(ctx context.Context, query string, dirs []shardDir, req Request) (*QueryResult, error) {
	start := time.Now()

	vec, err := index.EmbedQuery(ctx, e.embedder, query)
	if err != nil {
		return nil, err
	}

	results := make([]ShardResult, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, req.MaxWorkers)

	for i, sd := range dirs {
		i, sd := i, sd

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				results[i] = ShardResult{Fingerprint: sd.fp, Err: shardErr(sd.fp, gctx.Err())}
				return nil
			}

			results[i] = e.queryShard(gctx, sd, vec, req)
			// Shard errors never abort the group; siblings run on.
			return nil
		})
	}

	// Every goroutine returns nil, so g.Wait reports no error here; a
	// cancelled parent context surfaces as per-shard failures instead.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		ok        []ShardResult
		succeeded []string
		failed    map[string]string
		causes    map[string]error
	)
	for _, r := range results {
		if r.Err != nil {
			if failed == nil {
				failed = make(map[string]string)
				causes = make(map[string]error)
			}
			failed[r.Fingerprint] = ragerrors.GetCode(r.Err)
			causes[r.Fingerprint] = r.Err
			slog.LogAttrs(ctx, slog.LevelWarn, "shard failed",
				append([]slog.Attr{slog.String("fingerprint", r.Fingerprint)},
					ragerrors.LogAttrs(r.Err)...)...)
			continue
		}
		succeeded = append(succeeded, r.Fingerprint)
		ok = append(ok, r)
	}

	if len(succeeded) == 0 {
		return nil, ragerrors.AllShardsFailedError(causes)
	}

	return &QueryResult{
		Query:     query,
		Passages:  Aggregate(ok),
		Succeeded: succeeded,
		Failed:    failed,
		Elapsed:   time.Since(start),
	}, nil
}

// queryShard loads one shard through the cache and searches it under the
// per-shard timeout.
func (e *Engine) queryShard(ctx context.Context, sd shardDir, vec []float32, req Request) ShardResult {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	res, err := e.cache.GetOrLoad(sctx, sd.dir)
	if err != nil {
		return ShardResult{Fingerprint: sd.fp, Elapsed: time.Since(start), Err: shardErr(sd.fp, err)}
	}
	defer res.Handle.Close()

	passages, err := res.Handle.Search(sctx, vec, req.TopKPerSource)
	if err != nil {
		return ShardResult{Fingerprint: sd.fp, Elapsed: time.Since(start), Err: shardErr(sd.fp, err)}
	}

	return ShardResult{
		Fingerprint: sd.fp,
		Passages:    passages,
		Elapsed:     time.Since(start),
	}
}

// shardErr classifies a shard failure as timeout or generic failure.
func shardErr(fp string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ragerrors.ShardTimeoutError(fp)
	}
	return ragerrors.ShardFailureError(fp, err)
}
