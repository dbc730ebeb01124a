package core

type MemoryConfig interface {
	GetHotTurns() int
	GetWarmChunks() int
	GetSimilarityThreshold() float64
	IsWarmRetrievalEnabled() bool
}

type InferenceConfig interface {
	GetProvider() string
	GetModel() string
	SetModel(model string)
	GetMaxTokens() int
	GetTemperature() float64
}

type PromptConfig interface {
	GetHandlersPath() string
}

type TelegramConfig interface {
	GetTelegramToken() string
	GetTelegramOwnerID() int64
}
