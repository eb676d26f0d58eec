// 本文件用于固化知识库匹配质量门禁阈值，避免评估脚本和接口口径漂移

package kb

const (
	// GateMatchHitRatioMin 表示样本问题命中预期条目的最低比例
	GateMatchHitRatioMin = 0.90
	// GateFallbackRatioMax 表示依赖内容兜底匹配的最高比例
	GateFallbackRatioMax = 0.20
)

// QualityGates 用于对外统一暴露匹配质量门禁
type QualityGates struct {
	MatchHitRatioMin float64 `json:"matchHitRatioMin"`
	FallbackRatioMax float64 `json:"fallbackRatioMax"`
}

// DefaultQualityGates 返回当前固定门禁阈值
func DefaultQualityGates() QualityGates {
	return QualityGates{
		MatchHitRatioMin: GateMatchHitRatioMin,
		FallbackRatioMax: GateFallbackRatioMax,
	}
}
