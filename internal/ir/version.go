package ir

// EngineVersion is the tasksync release, reported by "tasksync --version".
const EngineVersion = "0.1.0"
