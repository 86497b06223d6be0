package core

// AgentInfo carries identifying details about the agent driving a session,
// used in contexts & events. Name is the external identifier; Type
// categorizes the implementation (e.g. "persona", "router").
type AgentInfo struct{ Name, Type string }
