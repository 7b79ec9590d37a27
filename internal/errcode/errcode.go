package errcode

// 错误码约定：
// - 0：无错误
// - 4xxx：业务可恢复/告警类错误（例如增量生成失败但已回退成功）
// - 5xxx：系统错误（需要中断流程）
const (
	OK                  = 0
	IncrementalFellBack = 4001
	TemplateMissing     = 4004
	SystemError         = 5000
	CompileFailed       = 5001
)
