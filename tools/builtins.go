package tools

func init() {
	MustRegister("calculator", "Evaluate arithmetic expressions.", NewCalculator)
	MustRegister("web_search", "Search the web via DuckDuckGo.", NewWebSearch)
	MustRegister("http_client", "Perform HTTP requests.", NewHTTPClient)
	MustRegister("timestamp_converter", "Convert timestamps between formats.", NewTimestampConverter)
	MustRegister("uuid_generator", "Generate UUIDs.", NewUUIDGenerator)
	MustRegister("memory_store", "Persist facts in conversation state.", NewMemoryStore)

	MustRegisterBundle("core", "General-purpose helpers.",
		[]string{"calculator", "timestamp_converter", "uuid_generator"})
	MustRegisterBundle("web", "Network access.",
		[]string{"web_search", "http_client"})
	MustRegisterBundle("memory", "Conversation memory.",
		[]string{"memory_store"})
}
