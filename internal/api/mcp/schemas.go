package mcp

// Tool names accepted by call_tool.
const (
	ToolAdvancedReasoning      = "advanced_reasoning"
	ToolCreateReasoningSession = "create_reasoning_session"
	ToolQueryReasoningMemory   = "query_reasoning_memory"
	ToolCreateMemoryLibrary    = "create_memory_library"
	ToolListMemoryLibraries    = "list_memory_libraries"
	ToolSwitchMemoryLibrary    = "switch_memory_library"
	ToolGetCurrentLibraryInfo  = "get_current_library_info"
	ToolCreateSystemJSON       = "create_system_json"
	ToolGetSystemJSON          = "get_system_json"
	ToolSearchSystemJSON       = "search_system_json"
	ToolListSystemJSON         = "list_system_json"
	ToolListModels             = "list_langchain_models"
	ToolGenerateText           = "generate_langchain_text"
	ToolCreateSession          = "create_session"
)

type schema = map[string]interface{}

func prop(typ, description string) schema {
	return schema{"type": typ, "description": description}
}

func stringList(description string) schema {
	return schema{"type": "array", "items": schema{"type": "string"}, "description": description}
}

func objectSchema(properties schema, required ...string) map[string]interface{} {
	s := schema{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

const advancedReasoningDescription = `Cognitive reasoning step with meta-cognition, hypothesis testing and graph memory.

Each call records one reasoning step. Required: thought, thoughtNumber,
totalThoughts, nextThoughtNeeded. Optional: confidence (0.0-1.0, default 0.5),
reasoning_quality ('low'|'medium'|'high', default 'medium'), meta_thought,
hypothesis, test_plan, test_result, evidence, goal, progress (0.0-1.0).

Pass session_id to store the step as a memory node, update the session and
receive related memories. builds_on links the new node to existing node ids.
isRevision/revisesThought mark revisions; branchFromThought/branchId open or
extend an alternative branch.`

// toolDescriptors lists every tool in the order list_tools reports them.
func toolDescriptors() []MCPTool {
	return []MCPTool{
		{
			Name:        ToolAdvancedReasoning,
			Description: advancedReasoningDescription,
			InputSchema: objectSchema(schema{
				"thought":           prop("string", "Your current reasoning step"),
				"nextThoughtNeeded": prop("boolean", "Whether another thought step is needed"),
				"thoughtNumber":     schema{"type": "integer", "description": "Current thought number", "minimum": 1},
				"totalThoughts":     schema{"type": "integer", "description": "Estimated total thoughts needed", "minimum": 1},
				"confidence":        schema{"type": "number", "description": "Confidence in this step (0.0-1.0)", "minimum": 0, "maximum": 1},
				"reasoning_quality": schema{"type": "string", "description": "Assessment of reasoning quality", "enum": []string{"low", "medium", "high"}},
				"meta_thought":      prop("string", "Reflection on the reasoning process"),
				"goal":              prop("string", "Overall goal or objective"),
				"progress":          schema{"type": "number", "description": "Progress toward goal (0.0-1.0)", "minimum": 0, "maximum": 1},
				"hypothesis":        prop("string", "Current working hypothesis"),
				"test_plan":         prop("string", "Plan for testing the hypothesis"),
				"test_result":       prop("string", "Result of hypothesis testing"),
				"evidence":          stringList("Evidence for or against the hypothesis"),
				"session_id":        prop("string", "Reasoning session identifier"),
				"builds_on":         stringList("Memory node ids this step builds on"),
				"challenges":        stringList("Ideas this step challenges or contradicts"),
				"isRevision":        prop("boolean", "Whether this revises previous thinking"),
				"revisesThought":    schema{"type": "integer", "description": "Which thought is being reconsidered", "minimum": 1},
				"branchFromThought": schema{"type": "integer", "description": "Branching point thought number", "minimum": 1},
				"branchId":          prop("string", "Branch identifier"),
				"needsMoreThoughts": prop("boolean", "If more thoughts are needed"),
			}, "thought", "nextThoughtNeeded", "thoughtNumber", "totalThoughts"),
		},
		{
			Name:        ToolCreateReasoningSession,
			Description: "Create a reasoning session that tracks goal, focus, confidence and quality across steps. Returns a session ID for advanced_reasoning.",
			InputSchema: objectSchema(schema{
				"goal": prop("string", "The main goal or problem to solve"),
			}, "goal"),
		},
		{
			Name:        ToolQueryReasoningMemory,
			Description: "Search the memory graph for insights, hypotheses and evidence related to a query, with the session's context and memory statistics.",
			InputSchema: objectSchema(schema{
				"session_id": prop("string", "Reasoning session identifier"),
				"query":      prop("string", "What to search for in memory"),
			}, "session_id", "query"),
		},
		{
			Name:        ToolCreateMemoryLibrary,
			Description: "Create a new, empty named memory library. Names may contain letters, numbers, underscores and hyphens. The current library does not change.",
			InputSchema: objectSchema(schema{
				"library_name": prop("string", "Name of the library to create"),
			}, "library_name"),
		},
		{
			Name:        ToolListMemoryLibraries,
			Description: "List every memory library with its node count, last modification time and whether it is current.",
			InputSchema: objectSchema(schema{}),
		},
		{
			Name:        ToolSwitchMemoryLibrary,
			Description: "Save the current memory library and load another one. A library that has never been written starts empty.",
			InputSchema: objectSchema(schema{
				"library_name": prop("string", "Name of the library to switch to"),
			}, "library_name"),
		},
		{
			Name:        ToolGetCurrentLibraryInfo,
			Description: "Report the current memory library's name and its node, session and connection counts.",
			InputSchema: objectSchema(schema{}),
		},
		{
			Name:        ToolCreateSystemJSON,
			Description: "Store a named structured document (workflow, instruction set, domain knowledge) for later retrieval. Creating an existing name replaces it.",
			InputSchema: objectSchema(schema{
				"name":        prop("string", "Document name (letters, numbers, underscores, hyphens)"),
				"domain":      prop("string", "Domain or category"),
				"description": prop("string", "What the document contains"),
				"data":        prop("object", "The structured content"),
				"tags":        stringList("Search tags"),
			}, "name", "domain", "description", "data"),
		},
		{
			Name:        ToolGetSystemJSON,
			Description: "Fetch a stored system JSON document by name.",
			InputSchema: objectSchema(schema{
				"name": prop("string", "Document name"),
			}, "name"),
		},
		{
			Name:        ToolSearchSystemJSON,
			Description: "Search stored system JSON documents by name, domain, description and tags, best match first.",
			InputSchema: objectSchema(schema{
				"query": prop("string", "Search terms"),
			}, "query"),
		},
		{
			Name:        ToolListSystemJSON,
			Description: "List every stored system JSON document with its domain, description and tags.",
			InputSchema: objectSchema(schema{}),
		},
		{
			Name:        ToolListModels,
			Description: "List the models known for an LLM provider (openai, anthropic, google, ollama).",
			InputSchema: objectSchema(schema{
				"provider": prop("string", "Provider name"),
			}, "provider"),
		},
		{
			Name:        ToolGenerateText,
			Description: "Generate text with an LLM provider and model. apiKey overrides the configured key for this call.",
			InputSchema: objectSchema(schema{
				"provider":      prop("string", "Provider name"),
				"modelName":     prop("string", "Model to use"),
				"prompt":        prop("string", "Prompt text"),
				"systemMessage": prop("string", "Optional system message"),
				"apiKey":        prop("string", "Optional API key"),
			}, "provider", "modelName", "prompt"),
		},
		{
			Name:        ToolCreateSession,
			Description: "Create a reasoning session, optionally switching to the named memory library first.",
			InputSchema: objectSchema(schema{
				"goal":        prop("string", "The main goal or problem to solve"),
				"libraryName": prop("string", "Library to switch to before creating the session"),
			}, "goal"),
		},
	}
}
