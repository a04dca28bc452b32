// Package stream 提供会话级事件流的注册表与阶段事件管道
package stream

// Stage 流水线阶段，按 sort 升序推进
type Stage int

const (
	StageInitialize Stage = iota
	StagePrepare
	StageInference
	StageAnswer
	StageReference
)

var stageNames = map[Stage]string{
	StageInitialize: "initialize",
	StagePrepare:    "prepare",
	StageInference:  "inference",
	StageAnswer:     "answer",
	StageReference:  "reference",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Phase 阶段内的子状态，按 start -> process* -> done 推进
type Phase int

const (
	PhaseStart Phase = iota
	PhaseProcess
	PhaseDone
)

// 带外事件，可在任意时刻出现
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventException  = "exception"
)

// EventName 返回阶段事件的线上名称：<stage>-start / <stage> / <stage>-done
func EventName(stage Stage, phase Phase) string {
	switch phase {
	case PhaseStart:
		return stage.String() + "-start"
	case PhaseDone:
		return stage.String() + "-done"
	default:
		return stage.String()
	}
}
