package pack

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result summarizes a finished build.
type Result struct {
	Renames  int
	Rewrite  RewriteReport
	Duration time.Duration
}

// Build runs the whole pipeline. The post-generation stages touch disjoint
// files and run concurrently; the first failure is returned.
func Build(ctx context.Context, p *Params) (*Result, error) {
	start := time.Now()

	if err := Compile(ctx, p); err != nil {
		return nil, err
	}
	if err := Generate(ctx, p); err != nil {
		return nil, err
	}

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := Optimize(gctx, p)
		res.Renames = m.Len()
		return err
	})
	g.Go(func() error {
		rep, err := Rewrite(p)
		res.Rewrite = rep
		return err
	})
	g.Go(func() error {
		return WriteManifest(p)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	p.stage("finish", zap.Duration("elapsed", res.Duration))
	return &res, nil
}
