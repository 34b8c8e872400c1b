package engine

import "fmt"

// Status 任务状态，数值与前端约定保持一致
type Status int

const (
	StatusCompleted        Status = 0
	StatusVideoDownloading Status = 1
	StatusAudioDownloading Status = 2
	StatusMerging          Status = 3
	StatusPending          Status = 4
	StatusFailed           Status = 5
	StatusPlanStart        Status = 6
	StatusPaused           Status = 7
)

type statusMeta struct {
	label string
	tone  string
	rank  int // 阶段顺序，Paused 不参与
}

var statusTable = map[Status]statusMeta{
	StatusPending:          {"排队中", "active", 0},
	StatusPlanStart:        {"准备开始下载", "active", 1},
	StatusVideoDownloading: {"视频下载中", "active", 2},
	StatusAudioDownloading: {"音频下载中", "active", 3},
	StatusMerging:          {"视频合成中", "active", 4},
	StatusCompleted:        {"已完成", "success", 5},
	StatusFailed:           {"下载失败", "exception", 5},
	StatusPaused:           {"暂停中", "warning", -1},
}

// Label 展示文本
func (s Status) Label() string {
	if m, ok := statusTable[s]; ok {
		return m.label
	}
	return fmt.Sprintf("未知状态(%d)", int(s))
}

// Tone 前端进度条样式：success / active / exception / warning
func (s Status) Tone() string {
	if m, ok := statusTable[s]; ok {
		return m.tone
	}
	return ""
}

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "Completed"
	case StatusVideoDownloading:
		return "VideoDownloading"
	case StatusAudioDownloading:
		return "AudioDownloading"
	case StatusMerging:
		return "Merging"
	case StatusPending:
		return "Pending"
	case StatusFailed:
		return "Failed"
	case StatusPlanStart:
		return "PlanStart"
	case StatusPaused:
		return "Paused"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsTerminal Completed 和 Failed 之后不再有状态变化
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsStreaming 只有音视频下载阶段可以暂停
func (s Status) IsStreaming() bool {
	return s == StatusVideoDownloading || s == StatusAudioDownloading
}

// Rank 阶段顺序，Paused 与未知状态返回 -1
func (s Status) Rank() int {
	if m, ok := statusTable[s]; ok {
		return m.rank
	}
	return -1
}

// CanTransition 判断 from -> to 是否合法：只能前进，
// 唯一例外是下载阶段与 Paused 之间的往返
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusPaused {
		return from.IsStreaming()
	}
	if from == StatusPaused {
		// 恢复必须回到原阶段，由调用方保证；这里只允许回到下载阶段或失败
		return to.IsStreaming() || to == StatusFailed
	}
	return to.Rank() >= from.Rank()
}
