package models

import "fmt"

// PipelineStage identifies one stage of the trading pipeline. The set is
// closed: measurements, SLOs and persisted rows all reference stages by
// these names.
type PipelineStage string

const (
	StageDataIngestion     PipelineStage = "data_ingestion"
	StageDataProcessing    PipelineStage = "data_processing"
	StageFeatureExtraction PipelineStage = "feature_extraction"
	StageSignalGeneration  PipelineStage = "signal_generation"
	StageRiskValidation    PipelineStage = "risk_validation"
	StageOrderCreation     PipelineStage = "order_creation"
	StageOrderExecution    PipelineStage = "order_execution"
	StageTradeConfirmation PipelineStage = "trade_confirmation"
	StagePortfolioUpdate   PipelineStage = "portfolio_update"
)

// Stages returns all pipeline stages in processing order.
func Stages() []PipelineStage {
	return []PipelineStage{
		StageDataIngestion,
		StageDataProcessing,
		StageFeatureExtraction,
		StageSignalGeneration,
		StageRiskValidation,
		StageOrderCreation,
		StageOrderExecution,
		StageTradeConfirmation,
		StagePortfolioUpdate,
	}
}

// ParseStage maps a raw string onto a known PipelineStage.
func ParseStage(s string) (PipelineStage, error) {
	for _, stage := range Stages() {
		if string(stage) == s {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown pipeline stage %q", s)
}
