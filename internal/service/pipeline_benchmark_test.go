package service

import (
	"context"
	"testing"
	"time"
)

func BenchmarkPipeline_FullRun(b *testing.B) {
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		stages := []Stage{
			&stubStage{name: "ingest", errs: []error{nil}},
			&stubStage{name: "text_extraction", errs: []error{nil}},
			&stubStage{name: "layout_normalization", errs: []error{nil}},
			&stubStage{name: "chunking", errs: []error{nil}},
			&stubStage{name: "embedding", errs: []error{nil}},
			&stubStage{name: "structured_extraction", errs: []error{nil}},
			&stubStage{name: "validation", errs: []error{nil}},
			&stubStage{name: "persistence", errs: []error{nil}},
			&stubStage{name: "metrics_and_audit", errs: []error{nil}},
		}
		runs := &fakeRunRepo{}
		metrics := &fakeMetricRepo{}
		docs := &fakeDocStatusRepo{}
		engine := newTestEngine(stages, runs, metrics, docs)
		if err := engine.Run(ctx, int64(i), "bench"); err != nil {
			b.Fatalf("Run() error: %v", err)
		}
	}
}

func BenchmarkPipeline_BackoffDelay(b *testing.B) {
	engine := newTestEngine(nil, &fakeRunRepo{}, &fakeMetricRepo{}, &fakeDocStatusRepo{})
	engine.cfg.Jitter = true
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.backoffDelay(i%5 + 1)
	}
}

func BenchmarkPipeline_RecordMetric(b *testing.B) {
	engine := newTestEngine(nil, &fakeRunRepo{}, &fakeMetricRepo{}, &fakeDocStatusRepo{})
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.recordMetric(ctx, int64(i), "embedding", 10*time.Millisecond)
	}
}
