package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Job 周期任务
type Job interface{ Run(ctx context.Context) }

// FuncJob 函数式任务
type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Cron 基于cron表达式的任务调度器，任务panic被恢复不影响其他任务
type Cron struct {
	c   *cron.Cron
	loc *time.Location
}

// NewCron 创建调度器，loc为nil时使用本地时区
func NewCron(loc *time.Location) *Cron {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &Cron{c: c, loc: loc}
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop 停止调度并等待运行中的任务结束
func (cr *Cron) Stop() { ctx := cr.c.Stop(); <-ctx.Done() }

// Add 按cron表达式注册任务
func (cr *Cron) Add(expr string, job Job) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() { job.Run(context.Background()) })
}

// Every 按固定间隔注册任务
func (cr *Cron) Every(d time.Duration, fn func(ctx context.Context)) (cron.EntryID, error) {
	return cr.Add("@every "+d.String(), FuncJob(fn))
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }
