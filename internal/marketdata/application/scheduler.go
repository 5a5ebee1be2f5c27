// Package application 行情服务应用层：抓取调度与缓存回退编排
package application

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wyfcoding/papertrading/pkg/logger"
)

// ErrQueueFull 调度队列已满，请求被拒绝
var ErrQueueFull = errors.New("fetch queue full")

// FetchFunc 一次上游抓取动作
type FetchFunc func(ctx context.Context) (any, error)

type fetchResult struct {
	value any
	err   error
}

type fetchRequest struct {
	ctx    context.Context
	fetch  FetchFunc
	result chan fetchResult
}

// FetchScheduler 串行化上游抓取的 FIFO 调度器。全局同一时刻最多一个
// 在途请求，相邻两次派发之间保持固定间隔，以满足免费行情源的限流条款。
// 间隔在抓取失败时同样消耗，上游的配额不关心结果。
type FetchScheduler struct {
	spacing time.Duration
	queue   chan *fetchRequest
	depth   prometheus.Gauge
}

// NewFetchScheduler 创建调度器。depth 可为 nil，表示不上报队列深度指标。
func NewFetchScheduler(spacing time.Duration, queueSize int, depth prometheus.Gauge) *FetchScheduler {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &FetchScheduler{
		spacing: spacing,
		queue:   make(chan *fetchRequest, queueSize),
		depth:   depth,
	}
}

// Start 启动派发循环，ctx 取消后排空队列并退出
func (s *FetchScheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *FetchScheduler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain(ctx.Err())
			return
		case req := <-s.queue:
			s.gaugeDec()
			// 出队时已取消的请求直接丢弃，不消耗派发间隔
			if err := req.ctx.Err(); err != nil {
				req.result <- fetchResult{err: err}
				continue
			}

			value, err := req.fetch(req.ctx)
			req.result <- fetchResult{value: value, err: err}

			select {
			case <-ctx.Done():
				s.drain(ctx.Err())
				return
			case <-time.After(s.spacing):
			}
		}
	}
}

// drain 调度器停止后回应所有仍在排队的请求
func (s *FetchScheduler) drain(err error) {
	for {
		select {
		case req := <-s.queue:
			s.gaugeDec()
			req.result <- fetchResult{err: err}
		default:
			logger.Info(context.Background(), "Fetch scheduler stopped")
			return
		}
	}
}

// Submit 提交一次抓取并阻塞等待结果。队列已满立即返回 ErrQueueFull；
// 调用方 ctx 取消后 Submit 返回，但已入队的请求由派发循环在出队时丢弃。
func (s *FetchScheduler) Submit(ctx context.Context, fetch FetchFunc) (any, error) {
	req := &fetchRequest{
		ctx:   ctx,
		fetch: fetch,
		// 缓冲为 1：派发循环写结果永不阻塞，即使调用方已放弃等待
		result: make(chan fetchResult, 1),
	}

	select {
	case s.queue <- req:
		s.gaugeInc()
	default:
		return nil, ErrQueueFull
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-req.result:
		return res.value, res.err
	}
}

func (s *FetchScheduler) gaugeInc() {
	if s.depth != nil {
		s.depth.Inc()
	}
}

func (s *FetchScheduler) gaugeDec() {
	if s.depth != nil {
		s.depth.Dec()
	}
}
