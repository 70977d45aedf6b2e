package common

// Environment variable keys
const (
	EnvConfigFile            = "CONFIG_FILE"
	EnvDataPath              = "DATA_PATH"
	EnvMetricsPort           = "METRICS_PORT"
	EnvHighRiskThreshold     = "HIGH_RISK_THRESHOLD"
	EnvMediumRiskThreshold   = "MEDIUM_RISK_THRESHOLD"
	EnvRetrainIntervalDays   = "MODEL_RETRAIN_INTERVAL_DAYS"
	EnvMinValidationAccuracy = "MIN_VALIDATION_ACCURACY"
	EnvTreeCount             = "TREE_COUNT"
	EnvMaxTreeDepth          = "MAX_TREE_DEPTH"
	EnvTrainingSeed          = "TRAINING_SEED"
	EnvAllowUnknownCategory  = "ALLOW_UNKNOWN_CATEGORY"
	EnvRecordsBaseURL        = "RECORDS_BASE_URL"
	EnvRecordsAPIKey         = "RECORDS_API_KEY"
	EnvRESTTimeout           = "REST_TIMEOUT"
	EnvDatasetPath           = "DATASET_PATH"
)

// Configuration defaults
const (
	DefaultDataPath              = "data"
	DefaultMetricsPort           = 8080
	DefaultHighRiskThreshold     = 0.7
	DefaultMediumRiskThreshold   = 0.4
	DefaultRetrainIntervalDays   = 30
	DefaultMinValidationAccuracy = 0.70
	DefaultTreeCount             = 200
	DefaultMaxTreeDepth          = 15
	DefaultMinSamplesLeaf        = 2
	DefaultTrainingSeed          = 42
	DefaultSplitRatio            = 0.2
)
