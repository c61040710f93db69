package exporter

// ProgressEvent 导出进度：每个角色的计算与每张 Sheet 的写入各算一步
type ProgressEvent struct {
	Stage string
	Sheet string // 本步写完的 Sheet，计算步骤为空
	Done  int
	Total int
}

// Percent 已完成百分比
func (e ProgressEvent) Percent() int {
	if e.Total <= 0 {
		return 0
	}
	return min(e.Done*100/e.Total, 100)
}

// ProgressFunc 进度回调，可为 nil
type ProgressFunc func(ProgressEvent)

type steps struct {
	fn    ProgressFunc
	done  int
	total int
}

// newSteps roles 个计算步骤，加汇总、roles 张趋势表与对比表
func newSteps(fn ProgressFunc, roles int) *steps {
	return &steps{fn: fn, total: 2*roles + 2}
}

func (s *steps) advance(stage, sheet string) {
	s.done++
	if s.fn != nil {
		s.fn(ProgressEvent{Stage: stage, Sheet: sheet, Done: s.done, Total: s.total})
	}
}
