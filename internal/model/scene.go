package model

// Scene is a structural unit parsed from a script
type Scene struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt,omitempty"`
}

// ParseScriptRequest asks for a script to be split into scenes
type ParseScriptRequest struct {
	Script string `json:"script" validate:"required"`
}

// ParseScriptResponse carries the parsed scenes
type ParseScriptResponse struct {
	Scenes []Scene `json:"scenes"`
}

// SceneEditRequest asks the LLM to rewrite one scene
type SceneEditRequest struct {
	Scene       Scene  `json:"scene" validate:"required"`
	UserRequest string `json:"userRequest" validate:"required,max=2000"`
}

// SceneEditResponse carries the rewritten scene
type SceneEditResponse struct {
	Scene Scene `json:"scene"`
}
